package env

import (
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

const exampleEnvFile = `# iperfx environment configuration.
# Every setting can also be set as a process environment variable.

# Basic connection settings
IPERFX_SERVER_HOST=node001.cluster.local
IPERFX_PORT=5201

# Test parameters
IPERFX_DURATION=30
IPERFX_BITRATE=10G
IPERFX_PARALLEL=4
IPERFX_PROTOCOL=tcp
IPERFX_FORMAT=g

# Output settings
IPERFX_JSON_OUTPUT=true
IPERFX_VERBOSE=false
IPERFX_OUTPUT_DIR=./results
IPERFX_RUN_ID=auto

# Test shape
IPERFX_REVERSE=false
IPERFX_BIDIR=false

# Metadata
IPERFX_NAME=hpc_network_test
IPERFX_TAGS=hpc,network,performance
`

// WriteExampleConfigs writes annotated starter profiles into dir:
// client_example.yaml, server_example.yaml and example.env.
func WriteExampleConfigs(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	client := New()
	client.Name = "supercomputer_performance_test"
	client.Description = "High-performance network testing between compute nodes"
	client.Tags = []string{"hpc", "network", "performance"}
	client.ServerHost = "node001"
	client.Duration = 30
	client.Parallel = 4
	client.Bitrate = "10G"
	client.Format = "g"
	client.NodeInfo = nil
	client.SchedInfo = nil

	server := New()
	server.Name = "iperfx_server"
	server.Description = "Server profile for HPC testing"
	server.Verbose = true
	server.Format = "g"
	server.OutputDir = "./server_results"
	server.NodeInfo = nil
	server.SchedInfo = nil

	files := map[string]*Environment{
		"client_example.yaml": client,
		"server_example.yaml": server,
	}
	for name, e := range files {
		data, err := yaml.Marshal(e)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path.Join(dir, name), data, 0644); err != nil {
			return err
		}
	}
	return os.WriteFile(path.Join(dir, "example.env"), []byte(exampleEnvFile), 0644)
}
