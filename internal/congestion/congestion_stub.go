//go:build !linux
// +build !linux

package congestion

func available() ([]string, error) {
	return nil, ErrNoSupport
}
