// Package server assembles the gateway's HTTP listeners.
//
// The plaintext listener is always started: it answers ACME HTTP-01
// challenges and redirects everything else to HTTPS when TLS is on, or
// serves the full gateway when TLS is off. The HTTPS listener resolves
// its certificate per handshake through the configured provider, so
// renewals and rotations need no restart. Both listeners drain
// gracefully on SIGINT/SIGTERM.
package server
