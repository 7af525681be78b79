// Package verify checks SNS envelope signatures. It rebuilds the canonical
// signing string for a payload, loads the RSA public key from the envelope's
// signing certificate, and validates the base64 signature with SHA-256
// PKCS#1 v1.5.
package verify
