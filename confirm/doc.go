// Package confirm completes SNS subscription handshakes. The approver gates
// the SubscribeURL host against an allow-list pattern, visits the URL, and
// notifies listeners of the outcome.
package confirm
