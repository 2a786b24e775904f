/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"fmt"
	"time"

	"github.com/acronis/go-reqkit/config"
)

const cfgDefaultKeyPrefix = "retry"

const (
	cfgKeyMaxRetries     = "maxRetries"
	cfgKeyBaseDelay      = "baseDelay"
	cfgKeyAttemptTimeout = "attemptTimeout"
)

// Config represents a set of configuration parameters for retrying operations.
// It may be loaded with config.Loader or decoded directly with json.Unmarshal/yaml.Unmarshal.
type Config struct {
	MaxRetries     int                 `mapstructure:"maxRetries" yaml:"maxRetries" json:"maxRetries"`
	BaseDelay      config.TimeDuration `mapstructure:"baseDelay" yaml:"baseDelay" json:"baseDelay"`
	AttemptTimeout config.TimeDuration `mapstructure:"attemptTimeout" yaml:"attemptTimeout" json:"attemptTimeout"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
// Parameters are expected under "retry" key unless another prefix is passed.
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
	dp.SetDefault(cfgKeyMaxRetries, DefaultMaxRetries)
	dp.SetDefault(cfgKeyBaseDelay, DefaultBaseDelay.String())
	dp.SetDefault(cfgKeyAttemptTimeout, DefaultAttemptTimeout.String())
}

// Set implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.MaxRetries, err = dp.GetInt(cfgKeyMaxRetries); err != nil {
		return err
	}
	if c.MaxRetries < 1 {
		return dp.WrapKeyErr(cfgKeyMaxRetries, fmt.Errorf("should be positive, got %d", c.MaxRetries))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyBaseDelay); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyBaseDelay, fmt.Errorf("should not be negative"))
	}
	c.BaseDelay = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyAttemptTimeout); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyAttemptTimeout, fmt.Errorf("should not be negative"))
	}
	c.AttemptTimeout = config.TimeDuration(dur)
	return nil
}

// Params returns retry parameters described by the configuration.
func (c *Config) Params() Params {
	return Params{
		MaxRetries:     c.MaxRetries,
		BaseDelay:      time.Duration(c.BaseDelay),
		AttemptTimeout: time.Duration(c.AttemptTimeout),
	}
}
