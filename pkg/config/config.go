package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abelian-network/abelian-go/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default path to the config directory.
	DefaultConfigPath = "./config"
	// DefaultConfigFile is the name of the configuration file looked up in
	// the config directory.
	DefaultConfigFile = "abelian.yml"
	// DefaultInitialChainID is the chain ID the registry is seeded with if
	// nothing else is configured.
	DefaultInitialChainID = 2
	// DefaultRecordCacheSize is the default number of records kept in the
	// registry read cache.
	DefaultRecordCacheSize = 1024
)

// Version is the version of the tool, set at build time.
var Version string

// Config top level struct representing the config
// for the registry tool.
type Config struct {
	Registry                 RegistryConfiguration    `yaml:"Registry"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Load attempts to load the config from the given path (DefaultConfigFile
// is looked up there).
func Load(path string) (Config, error) {
	return LoadFile(filepath.Join(path, DefaultConfigFile))
}

// LoadFile loads config from the provided path.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Unmarshal(configData)
}

// Unmarshal decodes the YAML configuration applying default values for
// everything that is not specified.
func Unmarshal(data []byte) (Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config is invalid: %w", err)
	}
	return config, nil
}

// Default returns the configuration used when no file is given: in-memory
// storage, info logging and a registry seeded with DefaultInitialChainID.
func Default() Config {
	return Config{
		Registry: RegistryConfiguration{
			InitialChainID:  DefaultInitialChainID,
			RecordCacheSize: DefaultRecordCacheSize,
		},
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.InMemoryDB,
			},
		},
	}
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("invalid Registry section: %w", err)
	}
	if err := c.ApplicationConfiguration.Validate(); err != nil {
		return fmt.Errorf("invalid ApplicationConfiguration section: %w", err)
	}
	return nil
}
