// Package env defines named test environments: reusable profiles that carry
// metadata, a few common test overrides and host provenance, and that derive
// ready-to-run client and server configurations.
//
// An Environment is loaded from up to four layers. Later layers win:
// field defaults, process environment variables (IPERFX_ prefix), an
// optional dotenv-style file, and finally direct field assignment by the
// caller.
package env

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/iperfx/internal/sysinfo"
	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/results"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "IPERFX_"

// ErrNoServerHost is returned when a client configuration is requested from
// an environment that has no server host.
var ErrNoServerHost = errors.New("environment has no server host")

// Environment is a named test profile.
type Environment struct {
	// Name identifies the environment. It becomes part of every run
	// directory name.
	Name string `yaml:"name" json:"name"`

	// Description is free-form documentation.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version is the profile's own version label, not the tool's.
	Version string `yaml:"version" json:"version"`

	// CreatedAt and CreatedBy record when and as whom the environment was
	// constructed.
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	CreatedBy string    `yaml:"created_by,omitempty" json:"created_by"`

	// Tags label the environment for later querying.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// ServerHost is the server that derived client configurations connect
	// to. Empty means the environment can only derive server configurations.
	ServerHost string `yaml:"server_host,omitempty" json:"server_host,omitempty"`

	// Port, Duration, Bitrate, Parallel, Protocol and Format override the
	// corresponding configuration defaults.
	Port     int           `yaml:"port" json:"port"`
	Duration int           `yaml:"duration" json:"duration"`
	Bitrate  string        `yaml:"bitrate,omitempty" json:"bitrate,omitempty"`
	Parallel int           `yaml:"parallel" json:"parallel"`
	Protocol spec.Protocol `yaml:"protocol" json:"protocol"`
	Format   string        `yaml:"format,omitempty" json:"format,omitempty"`

	// JSONOutput defaults to true: structured reports are the point.
	JSONOutput bool `yaml:"json_output" json:"json_output"`
	Verbose    bool `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Reverse    bool `yaml:"reverse,omitempty" json:"reverse,omitempty"`
	Bidir      bool `yaml:"bidir,omitempty" json:"bidir,omitempty"`

	// OutputDir is where run directories are created.
	OutputDir string `yaml:"output_directory" json:"output_directory"`

	// RunID pins the run ID. Empty (or "auto") means a fresh ID per run.
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`

	// NodeInfo and SchedInfo are best-effort host and batch-allocation
	// facts gathered at construction time.
	NodeInfo  map[string]string `yaml:"-" json:"node_info,omitempty"`
	SchedInfo map[string]string `yaml:"-" json:"sched_info,omitempty"`
}

// Option overrides a single Environment field at construction time.
type Option func(*Environment)

// WithName sets the environment name.
func WithName(name string) Option {
	return func(e *Environment) { e.Name = name }
}

// WithDescription sets the free-form description.
func WithDescription(desc string) Option {
	return func(e *Environment) { e.Description = desc }
}

// WithTags sets the environment's labels.
func WithTags(tags ...string) Option {
	return func(e *Environment) { e.Tags = tags }
}

// WithServerHost sets the server derived client configurations connect to.
func WithServerHost(host string) Option {
	return func(e *Environment) { e.ServerHost = host }
}

// WithOutputDir sets where run directories are created.
func WithOutputDir(dir string) Option {
	return func(e *Environment) { e.OutputDir = dir }
}

// WithRunID pins the run ID.
func WithRunID(id string) Option {
	return func(e *Environment) { e.RunID = id }
}

// New returns an Environment with every field at its default, host
// introspection already done and the given options applied.
func New(opts ...Option) *Environment {
	createdBy := os.Getenv("USER")
	if createdBy == "" {
		createdBy = "unknown"
	}
	e := &Environment{
		Name:       "iperfx-env",
		Version:    "1.0",
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  createdBy,
		Port:       spec.DefaultPort,
		Duration:   spec.DefaultDurationSec,
		Parallel:   spec.DefaultParallel,
		Protocol:   spec.ProtocolTCP,
		JSONOutput: true,
		OutputDir:  "./results",
		NodeInfo:   sysinfo.NodeInfo(),
		SchedInfo:  sysinfo.SchedInfo(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load builds an Environment from defaults, the process environment, an
// optional dotenv-style file and direct overrides, in that order of
// precedence, lowest first. Pass an empty path to skip the file.
func Load(envFile string, overrides ...Option) (*Environment, error) {
	e := New()
	if err := e.ApplyProcessEnv(); err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := e.ApplyEnvFile(envFile); err != nil {
			return nil, err
		}
	}
	for _, opt := range overrides {
		opt(e)
	}
	return e, nil
}

// LoadYAML builds an Environment from defaults and a YAML profile file.
func LoadYAML(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e := New()
	if err := yaml.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("cannot parse environment file %s: %w", path, err)
	}
	return e, nil
}

// ApplyProcessEnv overlays IPERFX_-prefixed process environment variables.
func (e *Environment) ApplyProcessEnv() error {
	return e.apply(func(key string) (string, bool) {
		return os.LookupEnv(EnvPrefix + key)
	})
}

// ApplyEnvFile overlays a dotenv-style file of KEY=VALUE lines. Keys use
// the same IPERFX_ prefix as process environment variables.
func (e *Environment) ApplyEnvFile(path string) error {
	values, err := parseEnvFile(path)
	if err != nil {
		return err
	}
	return e.apply(func(key string) (string, bool) {
		v, ok := values[EnvPrefix+key]
		return v, ok
	})
}

// apply overlays every known key available from get onto the environment.
func (e *Environment) apply(get func(key string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	setString("NAME", &e.Name)
	setString("DESCRIPTION", &e.Description)
	setString("VERSION", &e.Version)
	setString("CREATED_BY", &e.CreatedBy)
	setString("SERVER_HOST", &e.ServerHost)
	setString("BITRATE", &e.Bitrate)
	setString("FORMAT", &e.Format)
	setString("OUTPUT_DIR", &e.OutputDir)

	if v, ok := get("RUN_ID"); ok {
		// "auto" is a conventional placeholder for "generate one per run".
		if v == "auto" {
			v = ""
		}
		e.RunID = v
	}
	if v, ok := get("PROTOCOL"); ok {
		e.Protocol = spec.Protocol(strings.ToLower(v))
	}
	if v, ok := get("TAGS"); ok {
		e.Tags = splitTags(v)
	}

	var err error
	setInt := func(key string, dst *int) {
		v, ok := get(key)
		if !ok || err != nil {
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = fmt.Errorf("%s%s: invalid integer %q", EnvPrefix, key, v)
			return
		}
		*dst = n
	}
	setInt("PORT", &e.Port)
	setInt("DURATION", &e.Duration)
	setInt("PARALLEL", &e.Parallel)

	setBool := func(key string, dst *bool) {
		v, ok := get(key)
		if !ok || err != nil {
			return
		}
		b, convErr := strconv.ParseBool(v)
		if convErr != nil {
			err = fmt.Errorf("%s%s: invalid boolean %q", EnvPrefix, key, v)
			return
		}
		*dst = b
	}
	setBool("JSON_OUTPUT", &e.JSONOutput)
	setBool("VERBOSE", &e.Verbose)
	setBool("REVERSE", &e.Reverse)
	setBool("BIDIR", &e.Bidir)
	return err
}

func splitTags(v string) []string {
	var tags []string
	for _, t := range strings.Split(v, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseEnvFile reads a dotenv-style file: KEY=VALUE lines, # comments,
// optional "export " prefixes and optional single or double quotes around
// values.
func parseEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a KEY=VALUE line", path, i+1)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}
	return values, nil
}

// ClientConfig derives a validated client configuration. It fails when the
// environment has no server host.
func (e *Environment) ClientConfig() (*iperf.ClientConfig, error) {
	if e.ServerHost == "" {
		return nil, ErrNoServerHost
	}
	c, err := iperf.NewClientConfig(e.ServerHost)
	if err != nil {
		return nil, err
	}
	c.Port = e.Port
	c.Duration = e.Duration
	c.Bitrate = e.Bitrate
	c.Parallel = e.Parallel
	c.Protocol = e.Protocol
	c.Format = e.Format
	c.JSONOutput = e.JSONOutput
	c.Verbose = e.Verbose
	c.Reverse = e.Reverse
	c.Bidir = e.Bidir
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ServerConfig derives a validated server configuration. Unlike
// ClientConfig this always has enough information to succeed.
func (e *Environment) ServerConfig() (*iperf.ServerConfig, error) {
	s, err := iperf.NewServerConfig()
	if err != nil {
		return nil, err
	}
	s.Port = e.Port
	s.Format = e.Format
	s.JSONOutput = e.JSONOutput
	s.Verbose = e.Verbose
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NextRunID returns the pinned run ID when the environment has one, and a
// fresh unique ID otherwise. The environment itself is not mutated, so an
// unpinned environment yields a distinct ID for every run.
func (e *Environment) NextRunID() string {
	if e.RunID != "" {
		return e.RunID
	}
	return uuid.NewString()
}

// Provenance snapshots the environment's identity and host facts in the
// archival form: name/value pairs sorted by name.
func (e *Environment) Provenance() results.Provenance {
	return results.Provenance{
		EnvironmentName: e.Name,
		Description:     e.Description,
		Version:         e.Version,
		CreatedAt:       e.CreatedAt,
		CreatedBy:       e.CreatedBy,
		Tags:            append([]string(nil), e.Tags...),
		NodeInfo:        toNameValues(e.NodeInfo),
		SchedInfo:       toNameValues(e.SchedInfo),
	}
}

func toNameValues(m map[string]string) []results.NameValue {
	if len(m) == 0 {
		return nil
	}
	pairs := make([]results.NameValue, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, results.NameValue{Name: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}
