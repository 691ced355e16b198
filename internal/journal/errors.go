package journal

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("journal_invalid_db_path")
	ErrInvalidEvent  = errors.ErrorCode("journal_invalid_event")

	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("journal_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("journal_transaction_failed")

	ErrStorageInit  = errors.ErrInitJournal
	ErrStorageClose = errors.ErrShutdownFailed

	ErrRecordFailed     = errors.ErrorCode("journal_record_failed")
	ErrOperationTimeout = errors.ErrTimeout
)
