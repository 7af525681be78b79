// Package certs retrieves and validates the X.509 signing certificates that
// Amazon SNS publishes alongside each envelope. Fetched material is held
// behind a cache so repeated deliveries signed by the same certificate do
// not refetch it.
package certs
