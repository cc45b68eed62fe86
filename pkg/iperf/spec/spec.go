// Package spec contains constants shared by the iperf3 configuration model,
// the command compiler and the runner.
package spec

import "time"

const (
	// DefaultPort is the port iperf3 listens on when none is given. The
	// compiler omits the --port pair at this value.
	DefaultPort = 5201

	// MinPort and MaxPort bound every configurable port number.
	MinPort = 1
	MaxPort = 65535

	// DefaultDurationSec is the default client test duration in seconds.
	DefaultDurationSec = 10

	// DefaultIntervalSec is the default periodic report interval in seconds.
	// Zero disables periodic reports entirely.
	DefaultIntervalSec = 1.0

	// DefaultParallel is the default number of parallel client streams.
	DefaultParallel = 1

	// DefaultPacingTimerUS is the default client pacing timer in microseconds.
	DefaultPacingTimerUS = 1000

	// DefaultRcvTimeoutMS is the default idle receive timeout in milliseconds.
	DefaultRcvTimeoutMS = 120000

	// DefaultSCTPStreams is the number of SCTP streams used when the protocol
	// is SCTP and the caller did not choose a count.
	DefaultSCTPStreams = 1

	// MaxTOS is the largest valid IP type-of-service byte.
	MaxTOS = 255

	// ProbeTimeout bounds the one-time `iperf3 --version` readiness probe.
	ProbeTimeout = 10 * time.Second
)

// Mode selects which side of a test a configuration describes.
type Mode string

const (
	// ModeClient is a client-side test configuration.
	ModeClient = Mode("client")

	// ModeServer is a server-side test configuration.
	ModeServer = Mode("server")
)

// Protocol is the transport protocol used for a test.
type Protocol string

const (
	// ProtocolTCP is the default transport.
	ProtocolTCP = Protocol("tcp")

	// ProtocolUDP selects datagram tests (--udp).
	ProtocolUDP = Protocol("udp")

	// ProtocolSCTP selects SCTP tests (--sctp).
	ProtocolSCTP = Protocol("sctp")
)

// Valid reports whether p is one of the supported transports.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolSCTP:
		return true
	}
	return false
}

// Formats lists the unit selectors accepted by iperf3's --format flag.
var Formats = map[string]bool{
	"k": true, "m": true, "g": true, "t": true,
	"K": true, "M": true, "G": true, "T": true,
}
