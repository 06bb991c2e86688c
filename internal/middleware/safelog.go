package middleware

import "strings"

// MaskSecret маскирует session_id или токен в логах (в prod не светить полный id).
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
