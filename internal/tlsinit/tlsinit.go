// Package tlsinit installs the process-wide TLS configuration used by
// the ingress stage's WebSocket dialer, once, before the first dial.
// The spec treats TLS provider initialization as an external collaborator
// specified only by its interface — this is the minimal stdlib stand-in
// for that interface; there is no third-party "alternate TLS provider"
// library in the Go ecosystem analogous to swapping a rustls crypto
// provider, so install here stays on crypto/tls directly.
package tlsinit

import (
	"crypto/tls"
	"sync"
)

var once sync.Once
var cfg *tls.Config

// Install builds the shared tls.Config used by all outbound connections.
// Safe to call more than once; only the first call takes effect.
func Install() *tls.Config {
	once.Do(func() {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	})
	return cfg
}
