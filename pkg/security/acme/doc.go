// Package acme implements the certificate lifecycle manager: automated
// issuance and renewal of the gateway's TLS certificate via the ACME HTTP-01
// challenge.
//
// The manager runs a per-domain state machine:
//
//	Uninitialized -> Pending -> Valid -> Renewing -> Valid
//	                                  \-> Failed (retried with backoff)
//
// Certificates and the account key are persisted to a cache directory so a
// restart serves the cached certificate instead of placing a new order. A
// scheduled check renews the certificate once its expiry falls inside the
// renewal window. Renewal failures are not fatal: the last valid certificate
// keeps serving until it truly expires, at which point handshakes fail closed
// rather than handing out an expired certificate.
package acme
