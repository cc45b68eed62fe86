// Package report is a typed view of iperf3's --json output. It covers the
// fields summaries and plots need; the raw document stored alongside each
// run remains the complete record.
package report

import (
	"encoding/json"
	"errors"
)

// ErrEmptyReport is returned when there is no document to decode.
var ErrEmptyReport = errors.New("empty report")

// Report is the top-level structure of a single test's JSON output.
type Report struct {
	Start     Start      `json:"start"`
	Intervals []Interval `json:"intervals"`
	End       End        `json:"end"`
	Error     string     `json:"error,omitempty"`
}

// Start describes the test setup as reported by the tool.
type Start struct {
	Connected     []Connected  `json:"connected"`
	Version       string       `json:"version"`
	SystemInfo    string       `json:"system_info"`
	Timestamp     Timestamp    `json:"timestamp"`
	ConnectingTo  ConnectingTo `json:"connecting_to"`
	Cookie        string       `json:"cookie"`
	TCPMssDefault int64        `json:"tcp_mss_default"`
	TargetBitrate int64        `json:"target_bitrate"`
	SockBufsize   int64        `json:"sock_bufsize"`
	SndbufActual  int64        `json:"sndbuf_actual"`
	RcvbufActual  int64        `json:"rcvbuf_actual"`
	TestStart     TestStart    `json:"test_start"`
}

// Connected is one established connection.
type Connected struct {
	Socket     int64  `json:"socket"`
	LocalHost  string `json:"local_host"`
	LocalPort  int64  `json:"local_port"`
	RemoteHost string `json:"remote_host"`
	RemotePort int64  `json:"remote_port"`
}

// ConnectingTo is the server the client dialed.
type ConnectingTo struct {
	Host string `json:"host"`
	Port int64  `json:"port"`
}

// TestStart echoes the effective test parameters.
type TestStart struct {
	Protocol   string `json:"protocol"`
	NumStreams int64  `json:"num_streams"`
	Blksize    int64  `json:"blksize"`
	Omit       int64  `json:"omit"`
	Duration   int64  `json:"duration"`
	Bytes      int64  `json:"bytes"`
	Blocks     int64  `json:"blocks"`
	Reverse    int64  `json:"reverse"`
	Tos        int64  `json:"tos"`
	Bidir      int64  `json:"bidir"`
}

// Timestamp is the tool's start-of-test clock reading.
type Timestamp struct {
	Time     string `json:"time"`
	Timesecs int64  `json:"timesecs"`
}

// Interval is one periodic report covering all streams.
type Interval struct {
	Streams []IntervalStream `json:"streams"`
	Sum     Sum              `json:"sum"`
}

// IntervalStream is one stream's slice of an interval.
type IntervalStream struct {
	Socket        int64   `json:"socket"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Seconds       float64 `json:"seconds"`
	Bytes         int64   `json:"bytes"`
	BitsPerSecond float64 `json:"bits_per_second"`
	Retransmits   int64   `json:"retransmits"`
	SndCwnd       int64   `json:"snd_cwnd"`
	Rtt           int64   `json:"rtt"`
	Rttvar        int64   `json:"rttvar"`
	Pmtu          int64   `json:"pmtu"`
	Omitted       bool    `json:"omitted"`
	Sender        bool    `json:"sender"`
}

// Sum aggregates streams over an interval or a whole test.
type Sum struct {
	Socket        int64   `json:"socket"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Seconds       float64 `json:"seconds"`
	Bytes         int64   `json:"bytes"`
	BitsPerSecond float64 `json:"bits_per_second"`
	Retransmits   int64   `json:"retransmits"`
	JitterMS      float64 `json:"jitter_ms"`
	LostPackets   int64   `json:"lost_packets"`
	Packets       int64   `json:"packets"`
	LostPercent   float64 `json:"lost_percent"`
	MaxRtt        int64   `json:"max_rtt"`
	MinRtt        int64   `json:"min_rtt"`
	MeanRtt       int64   `json:"mean_rtt"`
	Sender        bool    `json:"sender"`
}

// EndStream is one stream's totals.
type EndStream struct {
	Sender   Sum    `json:"sender"`
	Receiver Sum    `json:"receiver"`
	UDP      UDPSum `json:"udp"`
}

// UDPSum carries the datagram-specific totals of a UDP test.
type UDPSum struct {
	Socket        int64   `json:"socket"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Seconds       float64 `json:"seconds"`
	Bytes         int64   `json:"bytes"`
	BitsPerSecond float64 `json:"bits_per_second"`
	JitterMS      float64 `json:"jitter_ms"`
	LostPackets   int64   `json:"lost_packets"`
	Packets       int64   `json:"packets"`
	LostPercent   float64 `json:"lost_percent"`
	OutOfOrder    int64   `json:"out_of_order"`
	Sender        bool    `json:"sender"`
}

// End holds the whole-test totals.
type End struct {
	Streams               []EndStream           `json:"streams"`
	SumSent               Sum                   `json:"sum_sent"`
	SumReceived           Sum                   `json:"sum_received"`
	Sum                   *Sum                  `json:"sum,omitempty"`
	CPUUtilizationPercent CPUUtilizationPercent `json:"cpu_utilization_percent"`
	SenderTCPCongestion   string                `json:"sender_tcp_congestion,omitempty"`
	ReceiverTCPCongestion string                `json:"receiver_tcp_congestion,omitempty"`
}

// CPUUtilizationPercent is the local and remote CPU usage over the test.
type CPUUtilizationPercent struct {
	HostTotal    float64 `json:"host_total"`
	HostUser     float64 `json:"host_user"`
	HostSystem   float64 `json:"host_system"`
	RemoteTotal  float64 `json:"remote_total"`
	RemoteUser   float64 `json:"remote_user"`
	RemoteSystem float64 `json:"remote_system"`
}

// Decode parses a complete JSON document into a Report.
func Decode(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, ErrEmptyReport
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FromMap converts a stored structured document back into a Report.
func FromMap(m map[string]any) (*Report, error) {
	if m == nil {
		return nil, ErrEmptyReport
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// SentMbps is the sender-side mean throughput in Mbit/s, or zero when the
// report has no totals.
func (r *Report) SentMbps() float64 {
	if r == nil {
		return 0
	}
	if r.End.SumSent.BitsPerSecond > 0 {
		return r.End.SumSent.BitsPerSecond / 1e6
	}
	if r.End.Sum != nil {
		return r.End.Sum.BitsPerSecond / 1e6
	}
	return 0
}

// ReceivedMbps is the receiver-side mean throughput in Mbit/s.
func (r *Report) ReceivedMbps() float64 {
	if r == nil {
		return 0
	}
	return r.End.SumReceived.BitsPerSecond / 1e6
}

// Retransmits is the total sender retransmit count.
func (r *Report) Retransmits() int64 {
	if r == nil {
		return 0
	}
	return r.End.SumSent.Retransmits
}

// NumStreams is the number of streams the test ran with.
func (r *Report) NumStreams() int {
	if r == nil {
		return 0
	}
	if n := int(r.Start.TestStart.NumStreams); n > 0 {
		return n
	}
	return len(r.End.Streams)
}
