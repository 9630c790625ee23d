package metrics

import "codeberg.org/mutker/biolog/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("metrics_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("metrics_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("metrics_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed

	// Collection Errors
	ErrSummaryRecord   = errors.ErrorCode("metrics_summary_record_failed")
	ErrInvalidSnapshot = errors.ErrorCode("metrics_invalid_snapshot")
	ErrInstruments     = errors.ErrorCode("metrics_instruments_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
