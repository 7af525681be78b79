// Package core contains the canonical SNS webhook domain contracts: the
// parsed notification payload, configuration, error envelopes, and the
// interfaces lower-level adapters implement. Adapters must depend on this
// package; core must not depend on transport- or store-specific adapters.
package core
