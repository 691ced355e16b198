package journal

import (
	"time"

	"codeberg.org/mutker/chargectl/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/chargectl/journal.db"
	defaultBatchSize    = 16
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	Enabled      bool
	DBPath       string
	BatchSize    int
	BatchTimeout time.Duration
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Empty means a "backups" directory next to DBPath.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, "negative batching parameters")
	}
	return nil
}
