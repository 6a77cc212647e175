package config

import "errors"

// RegistryConfiguration contains the registry deployment parameters.
type RegistryConfiguration struct {
	// InitialChainID is the chain ID the supported chain set is seeded with
	// on deployment.
	InitialChainID uint16 `yaml:"InitialChainID"`
	// RecordCacheSize is the number of node records kept in memory.
	RecordCacheSize int `yaml:"RecordCacheSize"`
}

// Validate checks RegistryConfiguration for internal consistency.
func (r RegistryConfiguration) Validate() error {
	if r.InitialChainID == 0 {
		return errors.New("InitialChainID must not be zero")
	}
	if r.RecordCacheSize <= 0 {
		return errors.New("RecordCacheSize must be positive")
	}
	return nil
}
