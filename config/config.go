// Package config resolves the immutable per-connection configuration
// record. Parsing DSNs/URLs is a caller's job; this package only
// covers loading a resolved profile from a YAML file and overlaying
// environment variables, in that precedence order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConnectionConfig is the immutable configuration consumed at adapter
// construction.
type ConnectionConfig struct {
	Project          string `yaml:"project"`
	Instance         string `yaml:"instance"`
	Database         string `yaml:"database"`
	ThreadPoolSize   int    `yaml:"thread_pool_size"`
	OptimizerVersion string `yaml:"optimizer_version,omitempty"`

	CredentialsFile string `yaml:"credentials,omitempty"`
	OAuthToken      string `yaml:"oauth_token,omitempty"`
	UsePlainText    bool   `yaml:"use_plain_text,omitempty"`
}

// DatabaseName formats the fully qualified Spanner database name used
// by both the database client and the database-admin client.
func (c ConnectionConfig) DatabaseName() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", c.Project, c.Instance, c.Database)
}

// InstanceName formats the fully qualified instance name,
// projects/<project>/instances/<instance>.
func (c ConnectionConfig) InstanceName() string {
	return fmt.Sprintf("projects/%s/instances/%s", c.Project, c.Instance)
}

const defaultThreadPoolSize = 4

// Profiles is a named set of connection profiles, the shape a
// connection-profiles YAML file takes.
type Profiles map[string]ConnectionConfig

// LoadProfiles reads a YAML file of named connection profiles.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read profiles file %q: %w", path, err)
	}
	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("config: failed to parse profiles file %q: %w", path, err)
	}
	for name, cfg := range profiles {
		profiles[name] = withDefaults(cfg)
	}
	return profiles, nil
}

// EnvOverlayPrefix is the prefix the adapter recognizes when
// overlaying environment variables onto a loaded profile.
const EnvOverlayPrefix = "SPANNERFLUX_"

// ApplyEnv overlays SPANNERFLUX_-prefixed environment variables onto
// cfg and returns the result. Recognized suffixes: PROJECT, INSTANCE,
// DATABASE, THREAD_POOL_SIZE, OPTIMIZER_VERSION, CREDENTIALS,
// OAUTH_TOKEN, USE_PLAIN_TEXT.
func ApplyEnv(cfg ConnectionConfig) ConnectionConfig {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvOverlayPrefix) {
			continue
		}
		switch strings.TrimPrefix(key, EnvOverlayPrefix) {
		case "PROJECT":
			cfg.Project = value
		case "INSTANCE":
			cfg.Instance = value
		case "DATABASE":
			cfg.Database = value
		case "THREAD_POOL_SIZE":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.ThreadPoolSize = n
			}
		case "OPTIMIZER_VERSION":
			cfg.OptimizerVersion = value
		case "CREDENTIALS":
			cfg.CredentialsFile = value
		case "OAUTH_TOKEN":
			cfg.OAuthToken = value
		case "USE_PLAIN_TEXT":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.UsePlainText = b
			}
		}
	}
	return withDefaults(cfg)
}

func withDefaults(cfg ConnectionConfig) ConnectionConfig {
	if cfg.ThreadPoolSize <= 0 {
		cfg.ThreadPoolSize = defaultThreadPoolSize
	}
	return cfg
}
