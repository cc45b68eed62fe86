// Package congestion reports which TCP congestion control algorithms the
// host kernel offers, so a requested algorithm can be checked before the
// tool is asked to use it. This currently only works on Linux systems.
package congestion

import (
	"errors"
)

// ErrNoSupport indicates that this system does not expose the available
// congestion control algorithms.
var ErrNoSupport = errors.New("congestion control detection not supported")

// Available lists the congestion control algorithms the kernel offers.
func Available() ([]string, error) {
	return available()
}

// Supported reports whether the kernel offers the given algorithm. The
// lookup is best-effort: on systems where the list cannot be read, every
// algorithm is reported as supported and the tool has the final word.
func Supported(cc string) bool {
	algos, err := available()
	if err != nil {
		return true
	}
	for _, a := range algos {
		if a == cc {
			return true
		}
	}
	return false
}
