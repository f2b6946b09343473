// Package errors provides structured error handling for ragcore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (chunk store, indices)
//   - 3XX: Network errors (remote embedder, reranker, cache, models)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates chunk store and index errors.
	CategoryStore Category = "STORE"
	// CategoryNetwork indicates remote service errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreQuery    = "ERR_201_STORE_QUERY_FAILED"
	ErrCodeChunkNotFound = "ERR_202_CHUNK_NOT_FOUND"
	ErrCodeStoreCorrupt  = "ERR_203_STORE_CORRUPT"
	ErrCodeParentInvalid = "ERR_204_PARENT_INVALID"

	// Network errors (300-399). These map to the degradable failure class:
	// the pipeline logs them and continues with reduced quality.
	ErrCodeEmbedderUnavailable = "ERR_301_EMBEDDER_UNAVAILABLE"
	ErrCodeRerankerUnavailable = "ERR_302_RERANKER_UNAVAILABLE"
	ErrCodeCacheUnavailable    = "ERR_303_CACHE_UNAVAILABLE"
	ErrCodeModelCallFailed     = "ERR_304_MODEL_CALL_FAILED"
	ErrCodeNetworkTimeout      = "ERR_305_NETWORK_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeBatchTooLarge     = "ERR_403_BATCH_TOO_LARGE"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"
	ErrCodeUnknownTenant     = "ERR_405_UNKNOWN_TENANT"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeRetrievalFailed  = "ERR_502_RETRIEVAL_FAILED"
	ErrCodeRoutingExhausted = "ERR_503_ROUTING_EXHAUSTED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_STORE_QUERY_FAILED")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeRoutingExhausted:
		return SeverityFatal
	}

	// Degradable network failures get warning severity: the pipeline
	// continues without the failed collaborator.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedderUnavailable, ErrCodeRerankerUnavailable,
		ErrCodeCacheUnavailable, ErrCodeNetworkTimeout:
		return true
	default:
		return false
	}
}
