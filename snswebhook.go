package snswebhook

import (
	"context"
	"regexp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-sns-webhook/certs"
	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
	sqlstore "github.com/goliatone/go-sns-webhook/store/sql"
	"github.com/goliatone/go-sns-webhook/verify"
)

type Config = core.Config

type Payload = core.Payload

type HTTPClient = core.HTTPClient

type CertificateCache = core.CertificateCache

type CertificateSource = core.CertificateSource

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	httpClient        core.HTTPClient
	certificateCache  core.CertificateCache
	certificateSource core.CertificateSource
	listener          confirm.Listener
	handler           inbound.Handler
	ledger            inbound.DeliveryLedger
	retryPolicy       inbound.RetryPolicy
	enqueuer          core.JobEnqueuer
	persistenceClient any
	repositoryFactory any
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	claimLease        time.Duration
	maxAttempts       int
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithHTTPClient(client core.HTTPClient) Option {
	return func(b *serviceBuilder) {
		b.httpClient = client
	}
}

func WithCertificateCache(cache core.CertificateCache) Option {
	return func(b *serviceBuilder) {
		b.certificateCache = cache
	}
}

func WithCertificateSource(source core.CertificateSource) Option {
	return func(b *serviceBuilder) {
		b.certificateSource = source
	}
}

func WithListener(listener confirm.Listener) Option {
	return func(b *serviceBuilder) {
		b.listener = listener
	}
}

func WithNotificationHandler(handler inbound.Handler) Option {
	return func(b *serviceBuilder) {
		b.handler = handler
	}
}

func WithDeliveryLedger(ledger inbound.DeliveryLedger) Option {
	return func(b *serviceBuilder) {
		b.ledger = ledger
	}
}

func WithRetryPolicy(policy inbound.RetryPolicy) Option {
	return func(b *serviceBuilder) {
		b.retryPolicy = policy
	}
}

func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.enqueuer = enqueuer
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithClaimLease(lease time.Duration) Option {
	return func(b *serviceBuilder) {
		b.claimLease = lease
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(b *serviceBuilder) {
		b.maxAttempts = attempts
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

// Service is the assembled SNS webhook pipeline: certificate resolution,
// signature verification, subscription confirmation, and inbound dispatch.
type Service struct {
	config         Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	verifier       *verify.Verifier
	approver       *confirm.Approver
	dispatcher     *inbound.Dispatcher
	ledger         inbound.DeliveryLedger
	normalizer     core.TimestampNormalizer
}

// New assembles a Service from cfg and options. Configuration resolves
// through three layers: package defaults, the config provider, then cfg as
// the runtime layer.
func New(cfg Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("sns-webhook", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("sns-webhook"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, core.WrapError(err,
			goerrors.CategoryOperation,
			"snswebhook: configuration load failed",
			core.ErrorOperationFailed,
		)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, core.WrapError(err,
			goerrors.CategoryOperation,
			"snswebhook: configuration resolve failed",
			core.ErrorOperationFailed,
		)
	}

	subscribePattern, err := regexp.Compile(finalConfig.Subscribe.DomainPattern)
	if err != nil {
		return nil, core.WrapError(err,
			goerrors.CategoryBadInput,
			"snswebhook: subscribe domain pattern is invalid",
			core.ErrorBadInput,
		)
	}

	source := builder.certificateSource
	if source == nil {
		fetcher := &certs.Fetcher{
			HTTPClient: builder.httpClient,
			Logger:     logger,
		}
		if hostPattern := strings.TrimSpace(finalConfig.Certificates.HostPattern); hostPattern != "" {
			compiled, patternErr := regexp.Compile(hostPattern)
			if patternErr != nil {
				return nil, core.WrapError(patternErr,
					goerrors.CategoryBadInput,
					"snswebhook: certificate host pattern is invalid",
					core.ErrorBadInput,
				)
			}
			fetcher.HostPattern = compiled
		}
		if builder.certificateCache != nil {
			source = &certs.CachedSource{
				Cache:   builder.certificateCache,
				Fetcher: fetcher,
				Logger:  logger,
			}
		} else {
			cacheConfig := repositorycache.DefaultConfig()
			if finalConfig.Certificates.CacheTTL > 0 {
				cacheConfig.TTL = finalConfig.Certificates.CacheTTL
			}
			cacheService, cacheErr := repositorycache.NewCacheService(cacheConfig)
			if cacheErr != nil {
				return nil, core.WrapError(cacheErr,
					goerrors.CategoryOperation,
					"snswebhook: certificate cache service build failed",
					core.ErrorOperationFailed,
				)
			}
			cached, sourceErr := certs.NewServiceCachedSource(fetcher, cacheService)
			if sourceErr != nil {
				return nil, core.WrapError(sourceErr,
					goerrors.CategoryOperation,
					"snswebhook: certificate source build failed",
					core.ErrorOperationFailed,
				)
			}
			source = cached
		}
	}

	if (builder.ledger == nil || builder.listener == nil) && builder.repositoryFactory != nil {
		if factory, ok := builder.repositoryFactory.(*sqlstore.RepositoryFactory); ok {
			if buildErr := factory.BuildStores(builder.persistenceClient); buildErr != nil {
				return nil, core.WrapError(buildErr,
					goerrors.CategoryOperation,
					"snswebhook: repository stores build failed",
					core.ErrorOperationFailed,
				)
			}
			if builder.ledger == nil {
				builder.ledger = factory.DeliveryStore()
			}
			if builder.listener == nil {
				builder.listener = factory.SubscriptionEventStore()
			}
		}
	}
	if builder.ledger == nil {
		builder.ledger = inbound.NewMemoryLedger()
	}

	verifier := &verify.Verifier{Source: source, Logger: logger}
	approver := &confirm.Approver{
		HTTPClient: builder.httpClient,
		Pattern:    subscribePattern,
		Listener:   builder.listener,
		Logger:     logger,
		Now:        builder.now,
	}
	dispatcher := &inbound.Dispatcher{
		Verifier:    verifier,
		Approver:    approver,
		Handler:     builder.handler,
		Ledger:      builder.ledger,
		RetryPolicy: builder.retryPolicy,
		Enqueuer:    builder.enqueuer,
		ClaimLease:  builder.claimLease,
		MaxAttempts: builder.maxAttempts,
		Logger:      logger,
		Now:         builder.now,
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		verifier:       verifier,
		approver:       approver,
		dispatcher:     dispatcher,
		ledger:         builder.ledger,
		normalizer: core.TimestampNormalizer{
			TimezoneAware: finalConfig.Timestamps.TimezoneAware,
		},
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return New(cfg, opts...)
}

// VerifyNotification reports whether the payload carries a valid signature.
// Every failure mode collapses to false.
func (s *Service) VerifyNotification(ctx context.Context, payload core.Payload) bool {
	if s == nil || s.verifier == nil {
		return false
	}
	return s.verifier.Verify(ctx, payload)
}

// ExplainVerification surfaces the reason an envelope fails verification,
// or nil when it verifies.
func (s *Service) ExplainVerification(ctx context.Context, payload core.Payload) error {
	if s == nil || s.verifier == nil {
		return core.NewError(
			"snswebhook: service is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}
	return s.verifier.Explain(ctx, payload)
}

// ApproveSubscription visits the payload's SubscribeURL after the domain
// gate passes and returns the visit outcome.
func (s *Service) ApproveSubscription(ctx context.Context, payload core.Payload) (confirm.Outcome, error) {
	if s == nil || s.approver == nil {
		return confirm.Outcome{}, core.NewError(
			"snswebhook: service is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}
	return s.approver.Approve(ctx, payload)
}

// Dispatch runs one inbound delivery through verify, claim, and route.
func (s *Service) Dispatch(ctx context.Context, req inbound.Request) (inbound.Result, error) {
	if s == nil || s.dispatcher == nil {
		return inbound.Result{}, core.NewError(
			"snswebhook: service is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}
	return s.dispatcher.Dispatch(ctx, req)
}

// GetDelivery reads a delivery record by its MessageId.
func (s *Service) GetDelivery(ctx context.Context, deliveryID string) (inbound.DeliveryRecord, error) {
	if s == nil || s.ledger == nil {
		return inbound.DeliveryRecord{}, core.NewError(
			"snswebhook: delivery ledger is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}
	return s.ledger.Get(ctx, deliveryID)
}

// NormalizeTimestamp parses an envelope Timestamp per the configured
// timezone handling.
func (s *Service) NormalizeTimestamp(value string) (time.Time, error) {
	if s == nil {
		return time.Time{}, core.NewError(
			"snswebhook: service is not configured",
			goerrors.CategoryInternal,
			core.ErrorInternal,
		)
	}
	return s.normalizer.Normalize(value)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return glog.Nop()
	}
	return glog.Ensure(s.logger)
}
