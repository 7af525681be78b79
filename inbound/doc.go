// Package inbound routes verified SNS envelopes. The dispatcher parses the
// request body, checks the signature, claims the delivery in a ledger so
// duplicate MessageIds collapse, and hands confirmations to the approver and
// notifications to the registered handler. Failed deliveries move through
// retry_ready toward dead, optionally re-driven through a job queue.
package inbound
