package meili

import "github.com/wizenheimer/meili/internal/meilierr"

// Error re-exports the internal error taxonomy (§7) at the package
// boundary so callers can type-assert without reaching into internal/.
type Error = meilierr.Error

// Code re-exports the error-code enum.
type Code = meilierr.Code

const (
	CodeUserInput   = meilierr.CodeUserInput
	CodeSchema      = meilierr.CodeSchema
	CodeResource    = meilierr.CodeResource
	CodeConcurrency = meilierr.CodeConcurrency
	CodeInternal    = meilierr.CodeInternal
)
