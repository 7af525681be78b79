package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput           = "SNS_BAD_INPUT"
	ErrorUnauthorized       = "SNS_UNAUTHORIZED"
	ErrorInvalidCertificate = "SNS_INVALID_CERTIFICATE"
	ErrorTransportFailed    = "SNS_TRANSPORT_FAILED"
	ErrorInvalidDomain      = "SNS_INVALID_DOMAIN"
	ErrorMissingField       = "SNS_MISSING_FIELD"
	ErrorTimestampInvalid   = "SNS_TIMESTAMP_INVALID"
	ErrorNotFound           = "SNS_NOT_FOUND"
	ErrorConflict           = "SNS_CONFLICT"
	ErrorOperationFailed    = "SNS_OPERATION_FAILED"
	ErrorInternal           = "SNS_INTERNAL_ERROR"
)

// NewError builds a categorized error envelope with the module's HTTP status
// mapping applied.
func NewError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return EnsureEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// WrapError attaches a category and text code to a source error while
// preserving the chain for errors.Is/As.
func WrapError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode)
	}
	return EnsureEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

// EnsureEnvelope fills the HTTP code and text code for envelopes built
// elsewhere, so every error that crosses the module boundary carries both.
func EnsureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatusFor(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	return err
}

func HTTPStatusFor(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryExternal:
		return ErrorTransportFailed
	case goerrors.CategoryOperation:
		return ErrorOperationFailed
	default:
		return ErrorInternal
	}
}
