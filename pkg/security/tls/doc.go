// Package tls serves certificates provisioned outside the gateway, for
// deployments where an external process (a corporate CA, certbot in
// standalone mode) manages issuance and the gateway only terminates.
//
// The Reloader watches the certificate and key files with fsnotify and
// swaps the served pair in place when the files change, so rotations
// take effect without a restart. Handshakes fail closed while no valid
// pair is loaded.
package tls
