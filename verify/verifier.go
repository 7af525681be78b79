package verify

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-sns-webhook/core"
)

// Verifier validates envelope signatures against the certificate named by
// the SigningCertURL field.
type Verifier struct {
	// Source resolves certificate PEM bytes, usually through a cache.
	Source core.CertificateSource

	Logger core.Logger
}

// Verify reports whether the payload carries a valid signature. It never
// returns an error: any failure along the way, from a missing field to an
// unreachable certificate host to a signature mismatch, collapses to false.
func (v *Verifier) Verify(ctx context.Context, payload core.Payload) bool {
	if err := v.Explain(ctx, payload); err != nil {
		v.logger().Info("signature rejected",
			"message_id", payload.MessageID(),
			"type", payload.Type(),
			"error", err,
		)
		return false
	}
	return true
}

// Explain runs the same checks as Verify but surfaces the failure cause, for
// callers that want to log or inspect why an envelope was rejected.
func (v *Verifier) Explain(ctx context.Context, payload core.Payload) error {
	if v == nil || v.Source == nil {
		return core.NewError(
			"verify: verifier is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}

	signingString, err := SigningString(payload)
	if err != nil {
		return err
	}

	encodedSignature, ok := payload.Field(core.FieldSignature)
	if !ok || strings.TrimSpace(encodedSignature) == "" {
		return core.NewError(
			"verify: envelope field Signature is required",
			goerrors.CategoryBadInput,
			core.ErrorMissingField,
		)
	}
	signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedSignature))
	if err != nil {
		return core.WrapError(err,
			goerrors.CategoryAuth,
			"verify: signature is not valid base64",
			core.ErrorUnauthorized,
		)
	}

	certURL, ok := payload.Field(core.FieldSigningCertURL)
	if !ok || strings.TrimSpace(certURL) == "" {
		return core.NewError(
			"verify: envelope field SigningCertURL is required",
			goerrors.CategoryBadInput,
			core.ErrorMissingField,
		)
	}
	pemBytes, err := v.Source.Resolve(ctx, certURL)
	if err != nil {
		return err
	}
	publicKey, err := LoadRSAPublicKey(pemBytes)
	if err != nil {
		return err
	}

	digest := sha256.Sum256([]byte(signingString))
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], signature); err != nil {
		return core.WrapError(err,
			goerrors.CategoryAuth,
			"verify: signature does not match signing string",
			core.ErrorUnauthorized,
		)
	}
	return nil
}

// LoadRSAPublicKey extracts the RSA public key from a single PEM
// certificate.
func LoadRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, core.NewError(
			"verify: certificate pem block is missing",
			goerrors.CategoryValidation,
			core.ErrorInvalidCertificate,
		)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, core.WrapError(err,
			goerrors.CategoryValidation,
			"verify: certificate is not valid x509",
			core.ErrorInvalidCertificate,
		)
	}
	publicKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, core.NewError(
			"verify: certificate does not carry an rsa public key",
			goerrors.CategoryValidation,
			core.ErrorInvalidCertificate,
		)
	}
	return publicKey, nil
}

func (v *Verifier) logger() core.Logger {
	return glog.Ensure(v.Logger)
}
