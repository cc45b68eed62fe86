package iperf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/m-lab/iperfx/pkg/iperf/spec"
)

// ValidationError collects every rule violated by a configuration so a
// caller sees all problems at once instead of fixing them one at a time.
type ValidationError struct {
	Problems []string
}

// Error joins all recorded problems into one message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

type violations struct {
	problems []string
}

func (v *violations) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *violations) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

var affinityRE = regexp.MustCompile(`^\d+(,\d+)?$`)

func (b *BaseConfig) validate(v *violations) {
	if b.Port < spec.MinPort || b.Port > spec.MaxPort {
		v.addf("port %d outside [%d, %d]", b.Port, spec.MinPort, spec.MaxPort)
	}
	if !b.Protocol.Valid() {
		v.addf("unknown protocol %q", b.Protocol)
	}
	if b.IPv4Only && b.IPv6Only {
		v.addf("ipv4_only and ipv6_only are mutually exclusive")
	}
	if b.Format != "" && !spec.Formats[b.Format] {
		v.addf("unknown format %q", b.Format)
	}
	if b.Interval < 0 {
		v.addf("interval must not be negative, got %g", b.Interval)
	}
	if b.CPUAffinity != "" && !affinityRE.MatchString(b.CPUAffinity) {
		v.addf("cpu_affinity %q must be \"n\" or \"n,m\"", b.CPUAffinity)
	}
	if b.RcvTimeout <= 0 {
		v.addf("rcv_timeout must be positive, got %d", b.RcvTimeout)
	}
	if b.SndTimeout < 0 {
		v.addf("snd_timeout must not be negative, got %d", b.SndTimeout)
	}
}

// Validate checks every server rule and reports all violations together.
func (s *ServerConfig) Validate() error {
	v := &violations{}
	s.BaseConfig.validate(v)
	if s.IdleTimeout < 0 {
		v.addf("idle_timeout must not be negative, got %d", s.IdleTimeout)
	}
	if s.TimeSkewThreshold < 0 {
		v.addf("time_skew_threshold must not be negative, got %d", s.TimeSkewThreshold)
	}
	return v.err()
}

// Validate checks every client rule and reports all violations together.
func (c *ClientConfig) Validate() error {
	v := &violations{}
	c.BaseConfig.validate(v)

	if c.ServerHost == "" {
		v.addf("server_host is required")
	}
	if c.Duration < 0 {
		v.addf("duration must not be negative, got %d", c.Duration)
	}
	if c.Bytes != "" && c.BlockCount != "" {
		v.addf("bytes and block_count are mutually exclusive")
	}
	if c.Duration != 0 && c.Duration != spec.DefaultDurationSec &&
		(c.Bytes != "" || c.BlockCount != "") {
		v.addf("an explicit duration cannot be combined with bytes or block_count")
	}
	if c.Parallel < 1 {
		v.addf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.PacingTimer < 0 {
		v.addf("pacing_timer must not be negative, got %d", c.PacingTimer)
	}
	if c.ConnectTimeout < 0 {
		v.addf("connect_timeout must not be negative, got %d", c.ConnectTimeout)
	}
	if c.ClientPort != 0 && (c.ClientPort < spec.MinPort || c.ClientPort > spec.MaxPort) {
		v.addf("client_port %d outside [%d, %d]", c.ClientPort, spec.MinPort, spec.MaxPort)
	}
	if c.TOS < 0 || c.TOS > spec.MaxTOS {
		v.addf("tos %d outside [0, %d]", c.TOS, spec.MaxTOS)
	}
	if c.FlowLabel < 0 {
		v.addf("flow_label must not be negative, got %d", c.FlowLabel)
	}
	if c.OmitSeconds < 0 {
		v.addf("omit_seconds must not be negative, got %d", c.OmitSeconds)
	}
	if c.MSS < 0 {
		v.addf("mss must not be negative, got %d", c.MSS)
	}
	if c.Protocol == spec.ProtocolUDP {
		if c.NoDelay {
			v.addf("no_delay applies to TCP only")
		}
		if c.Congestion != "" {
			v.addf("congestion control applies to TCP only")
		}
	}
	if c.Protocol != spec.ProtocolSCTP {
		if c.SCTPStreams != 0 {
			v.addf("sctp_streams requires the sctp protocol")
		}
		if len(c.XBind) > 0 {
			v.addf("xbind requires the sctp protocol")
		}
	}
	if c.SCTPStreams < 0 {
		v.addf("sctp_streams must not be negative, got %d", c.SCTPStreams)
	}
	return v.err()
}
