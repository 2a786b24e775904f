/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package batcher

import (
	"fmt"
	"time"

	"github.com/acronis/go-reqkit/config"
)

// DefaultInterval is the default length of the batch window.
const DefaultInterval = 50 * time.Millisecond

const cfgDefaultKeyPrefix = "batcher"

const (
	cfgKeyInterval     = "interval"
	cfgKeyMaxBatchSize = "maxBatchSize"
)

// Config represents a set of configuration parameters for Batcher.
type Config struct {
	Interval     config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`
	MaxBatchSize int                 `mapstructure:"maxBatchSize" yaml:"maxBatchSize" json:"maxBatchSize"`

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
	dp.SetDefault(cfgKeyInterval, DefaultInterval.String())
	dp.SetDefault(cfgKeyMaxBatchSize, 0)
}

// Set implements config.Config interface.
// The whole section is decoded at once, parameters missing in it keep their default values.
func (c *Config) Set(dp config.DataProvider) error {
	c.Interval = config.TimeDuration(DefaultInterval)
	c.MaxBatchSize = 0
	if err := dp.UnmarshalKey("", c, config.WithDurationHook()); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("should be positive, got %s", time.Duration(c.Interval)))
	}
	if c.MaxBatchSize < 0 {
		return dp.WrapKeyErr(cfgKeyMaxBatchSize, fmt.Errorf("should not be negative, got %d", c.MaxBatchSize))
	}
	return nil
}

// NewFromConfig creates a new Batcher with the window parameters from cfg.
// MaxBatchSize of opts is overridden by the configuration.
func NewFromConfig(cfg *Config, opts Opts) (*Batcher, error) {
	opts.MaxBatchSize = cfg.MaxBatchSize
	return New(time.Duration(cfg.Interval), opts)
}
