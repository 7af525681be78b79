package certs

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-sns-webhook/core"
)

// maxCertificateBytes bounds how much of a certificate response is read. SNS
// signing certificates are a couple of kilobytes; anything near this limit is
// not one.
const maxCertificateBytes = 1 << 20

// Fetcher retrieves a PEM signing certificate over HTTPS and refuses any
// response that does not decode to exactly one certificate.
type Fetcher struct {
	// HTTPClient issues the certificate request. Defaults to
	// http.DefaultClient when nil.
	HTTPClient core.HTTPClient

	// HostPattern optionally restricts which hosts certificates may be
	// fetched from. Nil leaves the fetch ungated.
	HostPattern *regexp.Regexp

	Logger core.Logger
}

var _ core.CertificateSource = (*Fetcher)(nil)

// Resolve implements core.CertificateSource by always fetching.
func (f *Fetcher) Resolve(ctx context.Context, certURL string) ([]byte, error) {
	return f.Fetch(ctx, certURL)
}

// Fetch downloads the certificate at certURL and returns the validated PEM
// bytes. Network failures and non-2xx responses surface as transport errors;
// responses with anything other than a single parseable certificate surface
// as invalid certificate errors.
func (f *Fetcher) Fetch(ctx context.Context, certURL string) ([]byte, error) {
	if f == nil {
		return nil, transportError("certs: fetcher is not configured")
	}
	trimmed := strings.TrimSpace(certURL)
	if trimmed == "" {
		return nil, invalidCertificateError("certs: certificate url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, wrapInvalidCertificateError(err, "certs: certificate url is malformed")
	}
	if f.HostPattern != nil && !f.HostPattern.MatchString(parsed.Hostname()) {
		return nil, invalidCertificateError(
			fmt.Sprintf("certs: certificate host %q is outside the allowed pattern", parsed.Hostname()),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, wrapTransportError(err, "certs: certificate request build failed")
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, wrapTransportError(err, "certs: certificate fetch failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertificateBytes))
	if err != nil {
		return nil, wrapTransportError(err, "certs: certificate body read failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, transportError(
			fmt.Sprintf("certs: certificate fetch returned status %d", resp.StatusCode),
		)
	}
	if err := ValidateSinglePEMCertificate(body); err != nil {
		return nil, err
	}
	f.logger().Info("certificate fetched", "cert_url", trimmed, "bytes", len(body))
	return body, nil
}

// ValidateSinglePEMCertificate enforces the single-certificate gate: the
// bytes must contain exactly one CERTIFICATE PEM block and it must parse as
// X.509. Zero blocks, multiple blocks, or undecodable content all fail.
func ValidateSinglePEMCertificate(pemBytes []byte) error {
	count := 0
	var certDER []byte
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			count++
			certDER = block.Bytes
		}
	}
	if count != 1 {
		return invalidCertificateError(
			fmt.Sprintf("certs: expected exactly one certificate, found %d", count),
		)
	}
	if _, err := x509.ParseCertificate(certDER); err != nil {
		return wrapInvalidCertificateError(err, "certs: certificate is not valid x509")
	}
	return nil
}

func (f *Fetcher) logger() core.Logger {
	return glog.Ensure(f.Logger)
}
