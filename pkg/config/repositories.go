package config

import (
	"fmt"
	"os"

	"github.com/lgulliver/vaultmvn/pkg/types"
	"gopkg.in/yaml.v2"
)

// Topology is the parsed shape of the repository/storage configuration file.
type Topology struct {
	Storages     []types.Storage    `yaml:"storages"`
	Repositories []types.Repository `yaml:"repositories"`
}

// LoadTopology reads and parses a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var topology Topology
	if err := yaml.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	for i := range topology.Repositories {
		if topology.Repositories[i].Type == types.RepositoryTypeGroup && len(topology.Repositories[i].GroupRepositories) == 0 {
			return nil, fmt.Errorf("repository %q is type group but has no groupRepositories", topology.Repositories[i].ID)
		}
	}

	return &topology, nil
}
