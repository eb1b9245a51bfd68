package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPublicDNS overrides the public hostname the agent advertises to the
// master. Useful on cloud hosts whose external name differs from what the
// kernel reports.
const EnvPublicDNS = "BURROW_PUBLIC_DNS"

// Config holds the agent's recognized options.
type Config struct {
	// Resources is the total consumable resource vector of this agent,
	// in textual form.
	Resources string `yaml:"resources"`

	// Attributes are free-form machine attributes advertised alongside
	// resources.
	Attributes string `yaml:"attributes"`

	// WorkDir is where framework work directories are placed.
	WorkDir string `yaml:"work_dir"`

	// HadoopHome locates a Hadoop installation used to fetch executor
	// binaries from HDFS URIs.
	HadoopHome string `yaml:"hadoop_home"`

	// SwitchUser runs tasks as the user who submitted them rather than
	// the user running the agent.
	SwitchUser bool `yaml:"switch_user"`

	// FrameworksHome is prepended to relative executor paths.
	FrameworksHome string `yaml:"frameworks_home"`

	// Checkpoint enables the durable status-update journal under
	// WorkDir.
	Checkpoint bool `yaml:"checkpoint"`
}

// Default returns the built-in option values.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Resources:  "cpus:1;mem:1024",
		WorkDir:    filepath.Join(home, "work"),
		SwitchUser: true,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path yields plain defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Map flattens the configuration for the /vars endpoint.
func (c *Config) Map() map[string]string {
	return map[string]string{
		"resources":       c.Resources,
		"attributes":      c.Attributes,
		"work_dir":        c.WorkDir,
		"hadoop_home":     c.HadoopHome,
		"switch_user":     strconv.FormatBool(c.SwitchUser),
		"frameworks_home": c.FrameworksHome,
		"checkpoint":      strconv.FormatBool(c.Checkpoint),
	}
}
