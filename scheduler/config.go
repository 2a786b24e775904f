/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package scheduler

import (
	"fmt"

	"github.com/acronis/go-reqkit/config"
)

// DefaultConcurrencyLimit is the default maximum number of concurrently running operations.
const DefaultConcurrencyLimit = 5

const cfgDefaultKeyPrefix = "scheduler"

const cfgKeyConcurrencyLimit = "concurrencyLimit"

// Config represents a set of configuration parameters for Scheduler.
type Config struct {
	ConcurrencyLimit int `mapstructure:"concurrencyLimit" yaml:"concurrencyLimit" json:"concurrencyLimit"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig(keyPrefix ...string) *Config {
	cfg := &Config{keyPrefix: cfgDefaultKeyPrefix}
	if len(keyPrefix) != 0 {
		cfg.keyPrefix = keyPrefix[0]
	}
	return cfg
}

// KeyPrefix implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyConcurrencyLimit, DefaultConcurrencyLimit)
}

// Set implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	limit, err := dp.GetInt(cfgKeyConcurrencyLimit)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return dp.WrapKeyErr(cfgKeyConcurrencyLimit, fmt.Errorf("should be positive, got %d", limit))
	}
	c.ConcurrencyLimit = limit
	return nil
}

// NewFromConfig creates a new Scheduler with the concurrency limit from cfg.
func NewFromConfig(cfg *Config, opts Opts) (*Scheduler, error) {
	return New(cfg.ConcurrencyLimit, opts)
}
