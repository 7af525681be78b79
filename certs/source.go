package certs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-sns-webhook/core"
)

const certificateCacheKeyPrefix = "go-sns-webhook::certificate::v1"

// CertificateCacheKey returns the deterministic cache key contract for
// certificate reads: go-sns-webhook::certificate::v1::<cert_url> with the
// URL segment path escaped.
func CertificateCacheKey(certURL string) (string, error) {
	trimmed := strings.TrimSpace(certURL)
	if trimmed == "" {
		return "", invalidCertificateError("certs: certificate url is required")
	}
	return certificateCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

// CachedSource consults an injected core.CertificateCache before delegating
// to a fetcher, and stores what the fetcher returns. Cache read or write
// failures degrade to a fetch rather than failing the lookup.
type CachedSource struct {
	Cache   core.CertificateCache
	Fetcher core.CertificateSource
	Logger  core.Logger
}

var _ core.CertificateSource = (*CachedSource)(nil)

func NewCachedSource(cache core.CertificateCache, fetcher core.CertificateSource) *CachedSource {
	return &CachedSource{Cache: cache, Fetcher: fetcher}
}

func (s *CachedSource) Resolve(ctx context.Context, certURL string) ([]byte, error) {
	if s == nil || s.Fetcher == nil {
		return nil, transportError("certs: cached source is not configured")
	}
	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, certURL)
		if err == nil && ok {
			return cached, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.Error("certificate cache read failed", "cert_url", certURL, "error", err)
		}
	}
	pemBytes, err := s.Fetcher.Resolve(ctx, certURL)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, certURL, pemBytes); err != nil && s.Logger != nil {
			s.Logger.Error("certificate cache write failed", "cert_url", certURL, "error", err)
		}
	}
	return pemBytes, nil
}

// ServiceCachedSource memoizes certificate fetches through a
// repositorycache.CacheService so lookups honor the configured TTL and
// single-flight semantics.
type ServiceCachedSource struct {
	fetcher core.CertificateSource
	cache   repositorycache.CacheService
}

var _ core.CertificateSource = (*ServiceCachedSource)(nil)

func NewServiceCachedSource(
	fetcher core.CertificateSource,
	cacheService repositorycache.CacheService,
) (*ServiceCachedSource, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("certs: certificate fetcher is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("certs: certificate cache service is required")
	}
	return &ServiceCachedSource{fetcher: fetcher, cache: cacheService}, nil
}

func (s *ServiceCachedSource) Resolve(ctx context.Context, certURL string) ([]byte, error) {
	if s == nil || s.fetcher == nil || s.cache == nil {
		return nil, transportError("certs: service cached source is not configured")
	}
	cacheKey, err := CertificateCacheKey(certURL)
	if err != nil {
		return nil, err
	}
	pemBytes, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]byte, error) {
		return s.fetcher.Resolve(ctx, certURL)
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(pemBytes))
	copy(out, pemBytes)
	return out, nil
}

// Invalidate drops the cached entry for certURL so the next resolve
// refetches.
func (s *ServiceCachedSource) Invalidate(ctx context.Context, certURL string) error {
	if s == nil || s.cache == nil {
		return nil
	}
	cacheKey, err := CertificateCacheKey(certURL)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
