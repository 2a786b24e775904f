/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"fmt"
	"time"

	"github.com/acronis/go-reqkit/config"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyMaxEntries      = "maxEntries"
	cfgKeyDefaultTTL      = "defaultTTL"
	cfgKeyCleanupInterval = "cleanupInterval"
)

// Default values for Config.
const (
	DefaultCleanupInterval = time.Minute
)

// Config represents a set of configuration parameters for the cache.
type Config struct {
	MaxEntries      int                 `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
	DefaultTTL      config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`

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
	dp.SetDefault(cfgKeyMaxEntries, 0)
	dp.SetDefault(cfgKeyDefaultTTL, "0s")
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
}

// Set implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("should not be negative"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyDefaultTTL); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyDefaultTTL, fmt.Errorf("should not be negative"))
	}
	c.DefaultTTL = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("should be positive"))
	}
	c.CleanupInterval = config.TimeDuration(dur)
	return nil
}

// Options returns cache options described by the configuration.
func (c *Config) Options() Options {
	return Options{MaxEntries: c.MaxEntries, DefaultTTL: time.Duration(c.DefaultTTL)}
}
