/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpop

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-reqkit/config"
	"github.com/acronis/go-reqkit/log"
)

// DefaultTimeout is the default timeout of a whole HTTP request.
const DefaultTimeout = 30 * time.Second

const cfgDefaultKeyPrefix = "httpClient"

const (
	cfgKeyTimeout   = "timeout"
	cfgKeyUserAgent = "userAgent"
	cfgKeyRateLimit = "rateLimit"
	cfgKeyRateBurst = "rateBurst"
)

// Config represents a set of configuration parameters for Client.
type Config struct {
	Timeout   config.TimeDuration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	UserAgent string              `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`
	RateLimit float64             `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`
	RateBurst int                 `mapstructure:"rateBurst" yaml:"rateBurst" json:"rateBurst"`

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
	dp.SetDefault(cfgKeyTimeout, DefaultTimeout.String())
	dp.SetDefault(cfgKeyUserAgent, DefaultUserAgent)
	dp.SetDefault(cfgKeyRateLimit, 0)
	dp.SetDefault(cfgKeyRateBurst, 1)
}

// Set implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	timeout, err := dp.GetDuration(cfgKeyTimeout)
	if err != nil {
		return err
	}
	if timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("should not be negative"))
	}
	c.Timeout = config.TimeDuration(timeout)

	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}

	if c.RateLimit, err = dp.GetFloat64(cfgKeyRateLimit); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimit, fmt.Errorf("should not be negative"))
	}

	if c.RateBurst, err = dp.GetInt(cfgKeyRateBurst); err != nil {
		return err
	}
	if c.RateBurst < 0 {
		return dp.WrapKeyErr(cfgKeyRateBurst, fmt.Errorf("should not be negative"))
	}
	return nil
}

// NewClientFromConfig creates a new Client with parameters from cfg.
func NewClientFromConfig(cfg *Config, logger log.FieldLogger) (*Client, error) {
	return NewClient(ClientOpts{
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.Timeout)},
		UserAgent:  cfg.UserAgent,
		RateLimit:  rate.Limit(cfg.RateLimit),
		RateBurst:  cfg.RateBurst,
		Logger:     logger,
	})
}
