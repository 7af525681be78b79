package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// HTTPClient is the transport used for certificate downloads and
// subscription-confirmation requests. *http.Client satisfies it; tests
// inject counting or failing doubles.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CertificateCache maps a signing-certificate URL to its raw PEM bytes.
// Get reports presence explicitly; Set overwrites. TTL and eviction are the
// store's responsibility, not the caller's.
type CertificateCache interface {
	Get(ctx context.Context, certURL string) ([]byte, bool, error)
	Set(ctx context.Context, certURL string, pemBytes []byte) error
}

// CertificateSource resolves a signing-certificate URL to validated PEM
// bytes, fetching on a cache miss.
type CertificateSource interface {
	Resolve(ctx context.Context, certURL string) ([]byte, error)
}

// JobExecutionMessage is the queue contract for deferred work, such as
// re-driving a failed webhook delivery.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// JobNackOptions controls requeue behavior when queued work fails.
type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}
