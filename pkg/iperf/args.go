package iperf

import (
	"strconv"

	"github.com/m-lab/iperfx/pkg/iperf/spec"
)

// Args compiles the server configuration. The result is deterministic:
// identical configurations always produce identical vectors, and every
// option left at its documented default is omitted.
func (s *ServerConfig) Args() []string {
	args := []string{"--server"}
	if s.Port != spec.DefaultPort {
		args = append(args, "--port", strconv.Itoa(s.Port))
	}
	if s.BindAddress != "" {
		args = append(args, "--bind", s.BindAddress)
	}
	if s.BindDevice != "" {
		args = append(args, "--bind-dev", s.BindDevice)
	}
	if s.Daemon {
		args = append(args, "--daemon")
	}
	if s.OneOff {
		args = append(args, "--one-off")
	}
	if s.IdleTimeout > 0 {
		args = append(args, "--idle-timeout", strconv.Itoa(s.IdleTimeout))
	}
	if s.ServerBitrateLimit != "" {
		args = append(args, "--server-bitrate-limit", s.ServerBitrateLimit)
	}
	if s.RSAPrivateKeyPath != "" {
		args = append(args, "--rsa-private-key-path", s.RSAPrivateKeyPath)
	}
	if s.AuthorizedUsersPath != "" {
		args = append(args, "--authorized-users-path", s.AuthorizedUsersPath)
	}
	if s.TimeSkewThreshold > 0 {
		args = append(args, "--time-skew-threshold", strconv.Itoa(s.TimeSkewThreshold))
	}
	return append(args, s.BaseConfig.commonArgs()...)
}

// Args compiles the client configuration. At most one of the --time,
// --bytes and --blockcount pairs is ever emitted; at full defaults none
// is, and the vector is exactly ["--client", host].
func (c *ClientConfig) Args() []string {
	args := []string{"--client", c.ServerHost}
	if c.Port != spec.DefaultPort {
		args = append(args, "--port", strconv.Itoa(c.Port))
	}
	switch {
	case c.Duration != 0 && c.Duration != spec.DefaultDurationSec:
		args = append(args, "--time", strconv.Itoa(c.Duration))
	case c.Bytes != "":
		args = append(args, "--bytes", c.Bytes)
	case c.BlockCount != "":
		args = append(args, "--blockcount", c.BlockCount)
	}
	switch c.Protocol {
	case spec.ProtocolUDP:
		args = append(args, "--udp")
	case spec.ProtocolSCTP:
		args = append(args, "--sctp")
	}
	if c.Bitrate != "" {
		args = append(args, "--bitrate", c.Bitrate)
	}
	if c.PacingTimer != 0 && c.PacingTimer != spec.DefaultPacingTimerUS {
		args = append(args, "--pacing-timer", strconv.Itoa(c.PacingTimer))
	}
	if c.FQRate != "" {
		args = append(args, "--fq-rate", c.FQRate)
	}
	if c.ConnectTimeout > 0 {
		args = append(args, "--connect-timeout", strconv.Itoa(c.ConnectTimeout))
	}
	if c.Parallel > spec.DefaultParallel {
		args = append(args, "--parallel", strconv.Itoa(c.Parallel))
	}
	if c.Reverse {
		args = append(args, "--reverse")
	}
	if c.Bidir {
		args = append(args, "--bidir")
	}
	if c.Length != "" {
		args = append(args, "--length", c.Length)
	}
	if c.Window != "" {
		args = append(args, "--window", c.Window)
	}
	if c.MSS > 0 {
		args = append(args, "--set-mss", strconv.Itoa(c.MSS))
	}
	if c.NoDelay {
		args = append(args, "--no-delay")
	}
	if c.ClientPort > 0 {
		args = append(args, "--cport", strconv.Itoa(c.ClientPort))
	}
	if c.TOS > 0 {
		args = append(args, "--tos", strconv.Itoa(c.TOS))
	}
	if c.DSCP != "" {
		args = append(args, "--dscp", c.DSCP)
	}
	if c.FlowLabel > 0 {
		args = append(args, "--flowlabel", strconv.Itoa(c.FlowLabel))
	}
	if c.FileInput != "" {
		args = append(args, "--file", c.FileInput)
	}
	if c.Protocol == spec.ProtocolSCTP {
		n := c.SCTPStreams
		if n == 0 {
			n = spec.DefaultSCTPStreams
		}
		args = append(args, "--nstreams", strconv.Itoa(n))
	}
	for _, addr := range c.XBind {
		args = append(args, "--xbind", addr)
	}
	if c.ZeroCopy {
		args = append(args, "--zerocopy")
	}
	if c.SkipRxCopy {
		args = append(args, "--skip-rx-copy")
	}
	if c.OmitSeconds > 0 {
		args = append(args, "--omit", strconv.Itoa(c.OmitSeconds))
	}
	if c.Title != "" {
		args = append(args, "--title", c.Title)
	}
	if c.ExtraData != "" {
		args = append(args, "--extra-data", c.ExtraData)
	}
	if c.Congestion != "" {
		args = append(args, "--congestion", c.Congestion)
	}
	if c.GetServerOutput {
		args = append(args, "--get-server-output")
	}
	if c.UDPCounters64Bit {
		args = append(args, "--udp-counters-64bit")
	}
	if c.RepeatingPayload {
		args = append(args, "--repeating-payload")
	}
	if c.DontFragment {
		args = append(args, "--dont-fragment")
	}
	if c.Username != "" {
		args = append(args, "--username", c.Username)
	}
	if c.RSAPublicKeyPath != "" {
		args = append(args, "--rsa-public-key-path", c.RSAPublicKeyPath)
	}
	return append(args, c.BaseConfig.commonArgs()...)
}

// commonArgs compiles the options shared by both modes, in a fixed order so
// vectors stay comparable across runs.
func (b *BaseConfig) commonArgs() []string {
	var args []string
	if b.Format != "" {
		args = append(args, "--format", b.Format)
	}
	if b.Interval != spec.DefaultIntervalSec {
		args = append(args, "--interval", strconv.FormatFloat(b.Interval, 'g', -1, 64))
	}
	if b.JSONOutput {
		args = append(args, "--json")
	}
	if b.JSONStream {
		args = append(args, "--json-stream")
	}
	if b.Verbose {
		args = append(args, "--verbose")
	}
	if b.CPUAffinity != "" {
		args = append(args, "--affinity", b.CPUAffinity)
	}
	if b.PidFile != "" {
		args = append(args, "--pidfile", b.PidFile)
	}
	if b.LogFile != "" {
		args = append(args, "--logfile", b.LogFile)
	}
	if b.ForceFlush {
		args = append(args, "--forceflush")
	}
	if b.Timestamps {
		if b.TimestampFormat == "" {
			args = append(args, "--timestamps")
		} else {
			args = append(args, "--timestamps="+b.TimestampFormat)
		}
	}
	if b.Debug {
		args = append(args, "--debug")
	}
	if b.IPv4Only {
		args = append(args, "--version4")
	}
	if b.IPv6Only {
		args = append(args, "--version6")
	}
	if b.RcvTimeout > 0 && b.RcvTimeout != spec.DefaultRcvTimeoutMS {
		args = append(args, "--rcv-timeout", strconv.Itoa(b.RcvTimeout))
	}
	if b.SndTimeout > 0 {
		args = append(args, "--snd-timeout", strconv.Itoa(b.SndTimeout))
	}
	if b.UsePKCS1Padding {
		args = append(args, "--use-pkcs1-padding")
	}
	if b.MPTCP {
		args = append(args, "--mptcp")
	}
	return args
}

// Command prepends the tool path to the compiled argument vector, yielding
// the full command line to execute.
func Command(binary string, cfg Config) []string {
	return append([]string{binary}, cfg.Args()...)
}
