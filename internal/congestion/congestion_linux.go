//go:build linux
// +build linux

package congestion

import (
	"os"
	"strings"
)

const availableCCPath = "/proc/sys/net/ipv4/tcp_available_congestion_control"

func available() ([]string, error) {
	content, err := os.ReadFile(availableCCPath)
	if err != nil {
		return nil, ErrNoSupport
	}
	return strings.Fields(string(content)), nil
}
