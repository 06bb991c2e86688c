package push

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/groupchat/internal/logger"
)

const defaultVAPIDKeysPath = "config/vapid.json"

// VAPIDKeys — пара ключей Web Push; общая для API (публичный ключ клиенту) и push-сервиса.
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func (k *VAPIDKeys) complete() bool {
	return k != nil && k.PublicKey != "" && k.PrivateKey != ""
}

// VAPIDKeysPath: явный путь, затем VAPID_KEYS_FILE, затем config/vapid.json.
func VAPIDKeysPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("VAPID_KEYS_FILE"); env != "" {
		return env
	}
	return defaultVAPIDKeysPath
}

// EnsureVAPIDKeys читает ключи из файла, а при отсутствии генерирует и сохраняет.
// Ошибка сохранения не фатальна: сгенерированные ключи возвращаются, но после рестарта будут другими.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	path = VAPIDKeysPath(path)
	if keys, err := readVAPIDKeys(path); err == nil && keys.complete() {
		return keys, nil
	}
	pub, priv, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("generate VAPID keys: %w", err)
	}
	keys := &VAPIDKeys{PublicKey: pub, PrivateKey: priv}
	if err := writeVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: VAPID keys not saved to %s: %v", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID keys generated, saved to %s", path)
	return keys, nil
}

func readVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &keys, nil
}

// writeVAPIDKeys пишет через временный файл и rename, чтобы два процесса не увидели половину файла.
func writeVAPIDKeys(path string, keys *VAPIDKeys) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".vapid-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
