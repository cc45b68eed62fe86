//go:build !linux
// +build !linux

package congestion

import (
	"testing"
)

func Test_Available(t *testing.T) {
	// This is unsupported on non-Linux systems.
	_, err := Available()
	if err != ErrNoSupport {
		t.Errorf("expected ErrNoSupport, got: %v", err)
	}
}

func Test_Supported(t *testing.T) {
	// Without a kernel list every algorithm passes.
	if !Supported("bbr") {
		t.Errorf("expected best-effort support without a kernel list")
	}
}
