package certs

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-sns-webhook/core"
)

func invalidCertificateError(message string) error {
	return core.NewError(message, goerrors.CategoryValidation, core.ErrorInvalidCertificate)
}

func wrapInvalidCertificateError(source error, message string) error {
	return core.WrapError(source, goerrors.CategoryValidation, message, core.ErrorInvalidCertificate)
}

func transportError(message string) error {
	return core.NewError(message, goerrors.CategoryExternal, core.ErrorTransportFailed)
}

func wrapTransportError(source error, message string) error {
	return core.WrapError(source, goerrors.CategoryExternal, message, core.ErrorTransportFailed)
}
