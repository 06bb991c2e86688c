package startup

import (
	"fmt"
	"os"
	"path/filepath"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/groupchat/internal/logger"
)

const (
	embeddedPort     = 5432
	embeddedUser     = "groupchat"
	embeddedPassword = "groupchat_secret"
	embeddedDatabase = "groupchat"
)

// StartEmbeddedPostgres поднимает PostgreSQL для режима -dev и возвращает его URL.
func StartEmbeddedPostgres(dataDir string) (*embeddedpostgres.EmbeddedPostgres, string, error) {
	if dataDir == "" {
		dataDir = filepath.Join(".", ".pgdata")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(embeddedPort).
			Username(embeddedUser).
			Password(embeddedPassword).
			Database(embeddedDatabase).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "groupchat-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, "", fmt.Errorf("start: %w", err)
	}
	url := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		embeddedUser, embeddedPassword, embeddedPort, embeddedDatabase)
	logger.Infof("embedded PostgreSQL running on port %d", embeddedPort)
	return db, url, nil
}
