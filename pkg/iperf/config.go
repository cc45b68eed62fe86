// Package iperf models iperf3 invocations: validated client and server
// configurations and their deterministic compilation to argument vectors.
//
// Configurations are plain structs. The constructors fill in documented
// defaults; Validate checks every rule at once and reports all violations
// together. Args compiles a validated configuration to the exact argv the
// tool expects, omitting everything left at its default.
package iperf

import (
	"github.com/m-lab/iperfx/pkg/iperf/spec"
)

// Config is the common surface of client and server configurations. The
// runner accepts any Config and does not otherwise care which side it is.
type Config interface {
	// Mode reports which side of a test this configuration describes.
	Mode() spec.Mode
	// Args compiles the configuration into an iperf3 argument vector.
	Args() []string
	// Validate checks every configuration rule and reports all violations.
	Validate() error
}

// BaseConfig holds the options shared by client and server configurations.
type BaseConfig struct {
	// Port is the server port to listen on or connect to.
	Port int `json:"port" yaml:"port"`

	// BindAddress is the local address to bind to.
	BindAddress string `json:"bind_address,omitempty" yaml:"bind_address,omitempty"`

	// BindDevice is the interface to bind to (--bind-dev).
	BindDevice string `json:"bind_device,omitempty" yaml:"bind_device,omitempty"`

	// Protocol is the transport protocol for the test.
	Protocol spec.Protocol `json:"protocol" yaml:"protocol"`

	// IPv4Only and IPv6Only restrict the test to one IP version. Setting
	// both is a validation error.
	IPv4Only bool `json:"ipv4_only,omitempty" yaml:"ipv4_only,omitempty"`
	IPv6Only bool `json:"ipv6_only,omitempty" yaml:"ipv6_only,omitempty"`

	// Format selects the unit iperf3 reports in (k/m/g/t, K/M/G/T).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Interval is the seconds between periodic bandwidth reports. Zero
	// disables periodic reporting.
	Interval float64 `json:"interval" yaml:"interval"`

	// JSONOutput requests machine-readable output (--json).
	JSONOutput bool `json:"json_output,omitempty" yaml:"json_output,omitempty"`

	// JSONStream requests line-delimited JSON output (--json-stream).
	JSONStream bool `json:"json_stream,omitempty" yaml:"json_stream,omitempty"`

	// Verbose requests detailed output.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Debug requests the tool's own debug output.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`

	// CPUAffinity pins the tool to a core, "n", or sender,receiver cores,
	// "n,m".
	CPUAffinity string `json:"cpu_affinity,omitempty" yaml:"cpu_affinity,omitempty"`

	// PidFile asks the tool to write its PID to this path.
	PidFile string `json:"pid_file,omitempty" yaml:"pid_file,omitempty"`

	// LogFile redirects the tool's output to this path.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// ForceFlush flushes output after every report line.
	ForceFlush bool `json:"force_flush,omitempty" yaml:"force_flush,omitempty"`

	// Timestamps prefixes every output line with a timestamp.
	// TimestampFormat, when set, is the strftime layout to use.
	Timestamps      bool   `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	TimestampFormat string `json:"timestamp_format,omitempty" yaml:"timestamp_format,omitempty"`

	// RcvTimeout is the idle timeout for receiving data, in milliseconds.
	RcvTimeout int `json:"rcv_timeout" yaml:"rcv_timeout"`

	// SndTimeout is the timeout for unacknowledged sent data, in
	// milliseconds. Zero means unset.
	SndTimeout int `json:"snd_timeout,omitempty" yaml:"snd_timeout,omitempty"`

	// UsePKCS1Padding restores the legacy RSA padding for authentication.
	UsePKCS1Padding bool `json:"use_pkcs1_padding,omitempty" yaml:"use_pkcs1_padding,omitempty"`

	// MPTCP enables Multipath TCP.
	MPTCP bool `json:"mptcp,omitempty" yaml:"mptcp,omitempty"`
}

// ServerConfig configures a server-side invocation.
type ServerConfig struct {
	BaseConfig `yaml:",inline"`

	// Daemon runs the server as a daemon.
	Daemon bool `json:"daemon,omitempty" yaml:"daemon,omitempty"`

	// OneOff makes the server exit after a single client session.
	OneOff bool `json:"one_off,omitempty" yaml:"one_off,omitempty"`

	// IdleTimeout makes an idle server exit after this many seconds. Zero
	// means unset.
	IdleTimeout int `json:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty"`

	// ServerBitrateLimit caps the aggregate client bitrate, e.g. "1G".
	ServerBitrateLimit string `json:"server_bitrate_limit,omitempty" yaml:"server_bitrate_limit,omitempty"`

	// RSAPrivateKeyPath and AuthorizedUsersPath enable authenticated mode.
	RSAPrivateKeyPath   string `json:"rsa_private_key_path,omitempty" yaml:"rsa_private_key_path,omitempty"`
	AuthorizedUsersPath string `json:"authorized_users_path,omitempty" yaml:"authorized_users_path,omitempty"`

	// TimeSkewThreshold is the allowed clock skew for authentication, in
	// seconds. Zero means unset.
	TimeSkewThreshold int `json:"time_skew_threshold,omitempty" yaml:"time_skew_threshold,omitempty"`
}

// ClientConfig configures a client-side invocation.
type ClientConfig struct {
	BaseConfig `yaml:",inline"`

	// ServerHost is the server to connect to. Required.
	ServerHost string `json:"server_host" yaml:"server_host"`

	// Duration is the test length in seconds. At the default the pair is
	// omitted and the tool's own default applies. A non-default Duration
	// cannot be combined with Bytes or BlockCount.
	Duration int `json:"duration" yaml:"duration"`

	// Bytes ends the test after transmitting this many bytes, e.g. "1G".
	// Mutually exclusive with BlockCount and a non-default Duration.
	Bytes string `json:"bytes,omitempty" yaml:"bytes,omitempty"`

	// BlockCount ends the test after this many blocks, e.g. "1000".
	// Mutually exclusive with Bytes and a non-default Duration.
	BlockCount string `json:"block_count,omitempty" yaml:"block_count,omitempty"`

	// Bitrate is the target bitrate, e.g. "10G". Empty lets the tool choose.
	Bitrate string `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`

	// PacingTimer is the burst pacing interval in microseconds.
	PacingTimer int `json:"pacing_timer" yaml:"pacing_timer"`

	// FQRate is the fair-queueing socket pacing rate, e.g. "5G".
	FQRate string `json:"fq_rate,omitempty" yaml:"fq_rate,omitempty"`

	// ConnectTimeout is the control-connection timeout in milliseconds.
	// Zero means unset.
	ConnectTimeout int `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`

	// Parallel is the number of parallel streams, at least 1.
	Parallel int `json:"parallel" yaml:"parallel"`

	// Reverse makes the server send. Bidir runs both directions at once.
	Reverse bool `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	Bidir   bool `json:"bidir,omitempty" yaml:"bidir,omitempty"`

	// Length is the read/write buffer size, e.g. "128K".
	Length string `json:"length,omitempty" yaml:"length,omitempty"`

	// Window is the socket buffer size, e.g. "4M".
	Window string `json:"window,omitempty" yaml:"window,omitempty"`

	// MSS is the TCP maximum segment size. Zero means unset.
	MSS int `json:"mss,omitempty" yaml:"mss,omitempty"`

	// NoDelay disables Nagle's algorithm. TCP only.
	NoDelay bool `json:"no_delay,omitempty" yaml:"no_delay,omitempty"`

	// ClientPort binds the client side to a specific port. Zero means unset.
	ClientPort int `json:"client_port,omitempty" yaml:"client_port,omitempty"`

	// TOS is the IP type-of-service byte, 0-255. Zero means unset.
	TOS int `json:"tos,omitempty" yaml:"tos,omitempty"`

	// DSCP is the IP DSCP value, numeric or symbolic, e.g. "EF".
	DSCP string `json:"dscp,omitempty" yaml:"dscp,omitempty"`

	// FlowLabel is the IPv6 flow label. Zero means unset.
	FlowLabel int `json:"flow_label,omitempty" yaml:"flow_label,omitempty"`

	// FileInput transmits the contents of a file instead of generated data.
	FileInput string `json:"file_input,omitempty" yaml:"file_input,omitempty"`

	// SCTPStreams is the number of SCTP streams. Only valid with the SCTP
	// protocol; when SCTP is selected and this is zero, one stream is used.
	SCTPStreams int `json:"sctp_streams,omitempty" yaml:"sctp_streams,omitempty"`

	// XBind binds SCTP associations to these addresses, in order. SCTP only.
	XBind []string `json:"xbind,omitempty" yaml:"xbind,omitempty"`

	// ZeroCopy uses sendfile-style zero-copy sends.
	ZeroCopy bool `json:"zero_copy,omitempty" yaml:"zero_copy,omitempty"`

	// SkipRxCopy discards received data without copying it to userspace.
	SkipRxCopy bool `json:"skip_rx_copy,omitempty" yaml:"skip_rx_copy,omitempty"`

	// OmitSeconds drops the first N seconds from the results. Zero means
	// unset.
	OmitSeconds int `json:"omit_seconds,omitempty" yaml:"omit_seconds,omitempty"`

	// Title prefixes every output line with this string.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// ExtraData is an arbitrary string copied into the tool's JSON output.
	ExtraData string `json:"extra_data,omitempty" yaml:"extra_data,omitempty"`

	// Congestion selects the TCP congestion control algorithm. TCP only.
	Congestion string `json:"congestion,omitempty" yaml:"congestion,omitempty"`

	// GetServerOutput retrieves the server-side output over the control
	// connection.
	GetServerOutput bool `json:"get_server_output,omitempty" yaml:"get_server_output,omitempty"`

	// UDPCounters64Bit uses 64-bit sequence numbers in UDP tests.
	UDPCounters64Bit bool `json:"udp_counters_64bit,omitempty" yaml:"udp_counters_64bit,omitempty"`

	// RepeatingPayload uses a repeating payload instead of random data.
	RepeatingPayload bool `json:"repeating_payload,omitempty" yaml:"repeating_payload,omitempty"`

	// DontFragment sets the IPv4 don't-fragment bit.
	DontFragment bool `json:"dont_fragment,omitempty" yaml:"dont_fragment,omitempty"`

	// Username and RSAPublicKeyPath authenticate against a server in
	// authenticated mode. Password is never placed on the command line; the
	// runner exports it to the tool through its environment.
	Username         string `json:"username,omitempty" yaml:"username,omitempty"`
	Password         string `json:"-" yaml:"password,omitempty"`
	RSAPublicKeyPath string `json:"rsa_public_key_path,omitempty" yaml:"rsa_public_key_path,omitempty"`
}

func defaultBase() BaseConfig {
	return BaseConfig{
		Port:       spec.DefaultPort,
		Protocol:   spec.ProtocolTCP,
		Interval:   spec.DefaultIntervalSec,
		RcvTimeout: spec.DefaultRcvTimeoutMS,
	}
}

// NewClientConfig returns a client configuration for the given server host
// with every other option at its default, validated.
func NewClientConfig(host string) (*ClientConfig, error) {
	c := &ClientConfig{
		BaseConfig:  defaultBase(),
		ServerHost:  host,
		Duration:    spec.DefaultDurationSec,
		PacingTimer: spec.DefaultPacingTimerUS,
		Parallel:    spec.DefaultParallel,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewServerConfig returns a server configuration with every option at its
// default, validated.
func NewServerConfig() (*ServerConfig, error) {
	s := &ServerConfig{BaseConfig: defaultBase()}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Mode reports spec.ModeClient.
func (c *ClientConfig) Mode() spec.Mode { return spec.ModeClient }

// Mode reports spec.ModeServer.
func (s *ServerConfig) Mode() spec.Mode { return spec.ModeServer }
