package journal

import (
	"database/sql"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS events (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL,
	       kind        TEXT NOT NULL,
	       channel     INTEGER NOT NULL CHECK (channel BETWEEN 0 AND 3),
	       source      TEXT NOT NULL,
	       detail      TEXT NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS events_kind_timestamp ON events (kind, timestamp);`

	insertEventSQL = `
    INSERT INTO events (timestamp, kind, channel, source, detail)
    VALUES (?, ?, ?, ?, ?)`

	insertVersionSQL = `
    INSERT INTO schema_versions (version, applied_at)
    VALUES (?, datetime('now'))`

	selectVersionSQL = `
    SELECT version
    FROM schema_versions
    ORDER BY version DESC
    LIMIT 1`

	tableExistsSQL = `
    SELECT EXISTS (
        SELECT 1 FROM sqlite_master
        WHERE type='table' AND name=?
    )`
)

// InitSchema creates the tables and records SchemaVersion.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback schema creation")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(insertVersionSQL, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Journal schema initialized")

	return nil
}

// GetSchemaVersion returns the recorded schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(selectVersionSQL).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

func TableExists(db *sql.DB, table string) (bool, error) {
	var exists bool
	if err := db.QueryRow(tableExistsSQL, table).Scan(&exists); err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: table,
			Error: err.Error(),
		})
	}
	return exists, nil
}
