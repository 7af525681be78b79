package confirm

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-sns-webhook/core"
)

func invalidDomainError(message string) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorInvalidDomain)
}

func missingFieldError(message string) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorMissingField)
}

func internalError(message string) error {
	return core.NewError(message, goerrors.CategoryInternal, core.ErrorInternal)
}
