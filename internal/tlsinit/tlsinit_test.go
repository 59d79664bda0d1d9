package tlsinit

import (
	"crypto/tls"
	"testing"
)

func TestInstallReturnsSameConfigEveryCall(t *testing.T) {
	a := Install()
	b := Install()
	if a != b {
		t.Fatal("Install should return the same *tls.Config on every call")
	}
	if a.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %v, want TLS 1.2", a.MinVersion)
	}
}
