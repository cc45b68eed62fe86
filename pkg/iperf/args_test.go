package iperf_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
)

func mustClient(t *testing.T, host string) *iperf.ClientConfig {
	t.Helper()
	c, err := iperf.NewClientConfig(host)
	if err != nil {
		t.Fatalf("NewClientConfig failed: %v", err)
	}
	return c
}

func TestClientConfig_Args_AllDefaults(t *testing.T) {
	c := mustClient(t, "node1")
	got := c.Args()
	want := []string{"--client", "node1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args: got %v, want %v", got, want)
	}
}

func TestClientConfig_Args_Deterministic(t *testing.T) {
	c := mustClient(t, "node1")
	c.Duration = 30
	c.Parallel = 4
	c.Bitrate = "10G"
	c.JSONOutput = true
	c.XBind = nil
	first := c.Args()
	second := c.Args()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two compilations differ: %v vs %v", first, second)
	}
}

func TestClientConfig_Args(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*iperf.ClientConfig)
		want   []string
	}{
		{
			name:   "non-default port",
			mutate: func(c *iperf.ClientConfig) { c.Port = 5202 },
			want:   []string{"--client", "node1", "--port", "5202"},
		},
		{
			name:   "explicit duration",
			mutate: func(c *iperf.ClientConfig) { c.Duration = 30 },
			want:   []string{"--client", "node1", "--time", "30"},
		},
		{
			name:   "bytes selector",
			mutate: func(c *iperf.ClientConfig) { c.Bytes = "1G" },
			want:   []string{"--client", "node1", "--bytes", "1G"},
		},
		{
			name:   "blockcount selector",
			mutate: func(c *iperf.ClientConfig) { c.BlockCount = "1000" },
			want:   []string{"--client", "node1", "--blockcount", "1000"},
		},
		{
			name:   "udp",
			mutate: func(c *iperf.ClientConfig) { c.Protocol = spec.ProtocolUDP },
			want:   []string{"--client", "node1", "--udp"},
		},
		{
			name:   "sctp defaults to one stream",
			mutate: func(c *iperf.ClientConfig) { c.Protocol = spec.ProtocolSCTP },
			want:   []string{"--client", "node1", "--sctp", "--nstreams", "1"},
		},
		{
			name: "sctp with xbind preserves order",
			mutate: func(c *iperf.ClientConfig) {
				c.Protocol = spec.ProtocolSCTP
				c.SCTPStreams = 2
				c.XBind = []string{"10.0.0.2", "10.0.0.1"}
			},
			want: []string{
				"--client", "node1", "--sctp", "--nstreams", "2",
				"--xbind", "10.0.0.2", "--xbind", "10.0.0.1",
			},
		},
		{
			name:   "parallel above default",
			mutate: func(c *iperf.ClientConfig) { c.Parallel = 8 },
			want:   []string{"--client", "node1", "--parallel", "8"},
		},
		{
			name:   "reverse and bidir",
			mutate: func(c *iperf.ClientConfig) { c.Reverse = true; c.Bidir = true },
			want:   []string{"--client", "node1", "--reverse", "--bidir"},
		},
		{
			name:   "interval disabled",
			mutate: func(c *iperf.ClientConfig) { c.Interval = 0 },
			want:   []string{"--client", "node1", "--interval", "0"},
		},
		{
			name:   "fractional interval",
			mutate: func(c *iperf.ClientConfig) { c.Interval = 0.5 },
			want:   []string{"--client", "node1", "--interval", "0.5"},
		},
		{
			name:   "json output",
			mutate: func(c *iperf.ClientConfig) { c.JSONOutput = true },
			want:   []string{"--client", "node1", "--json"},
		},
		{
			name:   "bare timestamps",
			mutate: func(c *iperf.ClientConfig) { c.Timestamps = true },
			want:   []string{"--client", "node1", "--timestamps"},
		},
		{
			name: "timestamps with layout",
			mutate: func(c *iperf.ClientConfig) {
				c.Timestamps = true
				c.TimestampFormat = "%H:%M:%S"
			},
			want: []string{"--client", "node1", "--timestamps=%H:%M:%S"},
		},
		{
			name:   "ipv6 only",
			mutate: func(c *iperf.ClientConfig) { c.IPv6Only = true },
			want:   []string{"--client", "node1", "--version6"},
		},
		{
			name:   "non-default rcv timeout",
			mutate: func(c *iperf.ClientConfig) { c.RcvTimeout = 5000 },
			want:   []string{"--client", "node1", "--rcv-timeout", "5000"},
		},
		{
			name: "authentication flags",
			mutate: func(c *iperf.ClientConfig) {
				c.Username = "alice"
				c.Password = "secret"
				c.RSAPublicKeyPath = "/keys/server.pem"
			},
			want: []string{
				"--client", "node1", "--username", "alice",
				"--rsa-public-key-path", "/keys/server.pem",
			},
		},
		{
			name: "tuning options keep their order",
			mutate: func(c *iperf.ClientConfig) {
				c.Bitrate = "10G"
				c.Length = "128K"
				c.Window = "4M"
				c.MSS = 1460
				c.NoDelay = true
				c.Congestion = "bbr"
			},
			want: []string{
				"--client", "node1", "--bitrate", "10G", "--length", "128K",
				"--window", "4M", "--set-mss", "1460", "--no-delay",
				"--congestion", "bbr",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustClient(t, "node1")
			tt.mutate(c)
			if err := c.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if got := c.Args(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientConfig_Args_PasswordNeverOnCommandLine(t *testing.T) {
	c := mustClient(t, "node1")
	c.Username = "alice"
	c.Password = "hunter2"
	for _, a := range c.Args() {
		if strings.Contains(a, "hunter2") {
			t.Fatalf("password leaked into argv: %v", c.Args())
		}
	}
}

func TestClientConfig_Args_AtMostOneDurationSelector(t *testing.T) {
	configs := []*iperf.ClientConfig{}
	base := mustClient(t, "node1")
	configs = append(configs, base)
	withTime := mustClient(t, "node1")
	withTime.Duration = 60
	configs = append(configs, withTime)
	withBytes := mustClient(t, "node1")
	withBytes.Bytes = "500M"
	configs = append(configs, withBytes)
	withBlocks := mustClient(t, "node1")
	withBlocks.BlockCount = "42"
	configs = append(configs, withBlocks)

	for _, c := range configs {
		n := 0
		for _, a := range c.Args() {
			if a == "--time" || a == "--bytes" || a == "--blockcount" {
				n++
			}
		}
		if n > 1 {
			t.Errorf("more than one duration selector in %v", c.Args())
		}
	}
}

func TestServerConfig_Args(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*iperf.ServerConfig)
		want   []string
	}{
		{
			name:   "all defaults",
			mutate: func(s *iperf.ServerConfig) {},
			want:   []string{"--server"},
		},
		{
			name: "daemon one-off on an alternate port",
			mutate: func(s *iperf.ServerConfig) {
				s.Port = 5301
				s.Daemon = true
				s.OneOff = true
			},
			want: []string{"--server", "--port", "5301", "--daemon", "--one-off"},
		},
		{
			name: "bind address and device",
			mutate: func(s *iperf.ServerConfig) {
				s.BindAddress = "10.0.0.1"
				s.BindDevice = "eth0"
			},
			want: []string{"--server", "--bind", "10.0.0.1", "--bind-dev", "eth0"},
		},
		{
			name: "authenticated server",
			mutate: func(s *iperf.ServerConfig) {
				s.RSAPrivateKeyPath = "/keys/private.pem"
				s.AuthorizedUsersPath = "/keys/users.csv"
				s.TimeSkewThreshold = 10
			},
			want: []string{
				"--server", "--rsa-private-key-path", "/keys/private.pem",
				"--authorized-users-path", "/keys/users.csv",
				"--time-skew-threshold", "10",
			},
		},
		{
			name: "bitrate cap and idle timeout",
			mutate: func(s *iperf.ServerConfig) {
				s.ServerBitrateLimit = "1G"
				s.IdleTimeout = 600
			},
			want: []string{
				"--server", "--idle-timeout", "600",
				"--server-bitrate-limit", "1G",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := iperf.NewServerConfig()
			if err != nil {
				t.Fatalf("NewServerConfig failed: %v", err)
			}
			tt.mutate(s)
			if err := s.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if got := s.Args(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSharedOptionsComeLast(t *testing.T) {
	c := mustClient(t, "node1")
	c.Duration = 30
	c.JSONOutput = true
	c.Verbose = true
	args := c.Args()
	// Mode-specific pairs must all precede the shared tail.
	jsonAt := indexOf(args, "--json")
	timeAt := indexOf(args, "--time")
	if jsonAt < timeAt {
		t.Errorf("shared option --json before mode option --time: %v", args)
	}
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestCommand(t *testing.T) {
	c := mustClient(t, "node1")
	got := iperf.Command("/usr/bin/iperf3", c)
	want := []string{"/usr/bin/iperf3", "--client", "node1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Command: got %v, want %v", got, want)
	}
}
