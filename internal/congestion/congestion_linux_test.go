//go:build linux
// +build linux

package congestion

import (
	"os"
	"strings"
	"testing"
)

func TestAvailable(t *testing.T) {
	content, err := os.ReadFile(availableCCPath)
	if err != nil {
		t.Skip("cannot read list of available cc algorithms, skipping test")
	}
	want := strings.Fields(string(content))

	got, err := Available()
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	if len(got) != len(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSupported(t *testing.T) {
	content, err := os.ReadFile(availableCCPath)
	if err != nil {
		t.Skip("cannot read list of available cc algorithms, skipping test")
	}
	ccList := strings.Fields(string(content))
	for _, cc := range ccList {
		t.Logf("testing cc %s", cc)
		if !Supported(cc) {
			t.Errorf("%s should be supported", cc)
		}
	}
	if Supported("definitely-not-a-cc") {
		t.Error("nonexistent algorithm reported as supported")
	}
}
