/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClientConfig struct {
	Timeout  time.Duration
	Strategy string
}

func (c *testClientConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("timeout", "5s")
	dp.SetDefault("strategy", "exponential")
}

func (c *testClientConfig) Set(dp DataProvider) error {
	var err error
	if c.Timeout, err = dp.GetDuration("timeout"); err != nil {
		return err
	}
	c.Strategy, err = dp.GetStringFromSet("strategy", []string{"exponential", "constant"}, true)
	return err
}

type testPrefixedConfig struct {
	MaxSize ByteSize
}

func (c *testPrefixedConfig) KeyPrefix() string {
	return "cache"
}

func (c *testPrefixedConfig) SetProviderDefaults(_ DataProvider) {}

func (c *testPrefixedConfig) Set(dp DataProvider) error {
	var err error
	c.MaxSize, err = dp.GetByteSize("maxSize")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("load config, use defaults", func(t *testing.T) {
		cfg := &testClientConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, cfg.Timeout)
		require.Equal(t, "exponential", cfg.Strategy)
	})

	t.Run("load config", func(t *testing.T) {
		cfg := &testClientConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString("timeout: 250ms\nstrategy: CONSTANT\n"), DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 250*time.Millisecond, cfg.Timeout)
		require.Equal(t, "CONSTANT", cfg.Strategy)
	})

	t.Run("unknown value from set", func(t *testing.T) {
		cfg := &testClientConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"strategy":"linear"}`), DataTypeJSON, cfg)
		require.EqualError(t, err, `strategy: unknown value "linear", should be one of [exponential constant]`)
	})

	t.Run("load config, use key prefix", func(t *testing.T) {
		cfg := &testPrefixedConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"cache":{"maxSize":"2M"}}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, ByteSize(2*1024*1024), cfg.MaxSize)
	})

	t.Run("several configs at once", func(t *testing.T) {
		clientCfg, prefixedCfg := &testClientConfig{}, &testPrefixedConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"timeout":"1s","cache":{"maxSize":1024}}`), DataTypeJSON, clientCfg, prefixedCfg)
		require.NoError(t, err)
		require.Equal(t, time.Second, clientCfg.Timeout)
		require.Equal(t, ByteSize(1024), prefixedCfg.MaxSize)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 3s\n"), 0o600))

	cfg := &testClientConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeYAML, cfg))
	require.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestLoader_Load_EnvVars(t *testing.T) {
	t.Setenv("REQKIT_TIMEOUT", "42ms")

	cfg := &testClientConfig{}
	require.NoError(t, NewDefaultLoader("reqkit").Load(cfg))
	require.Equal(t, 42*time.Millisecond, cfg.Timeout)
}

type testSectionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Backoff TimeDuration  `mapstructure:"backoff"`
	Limit   int           `mapstructure:"limit"`
}

func TestDataProvider_UnmarshalKey(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(
		"client:\n  timeout: 100ms\n  backoff: 2s\n  limit: 7\n"), DataTypeYAML))

	var direct testSectionConfig
	require.NoError(t, va.UnmarshalKey("client", &direct, WithDurationHook()))
	require.Equal(t, testSectionConfig{Timeout: 100 * time.Millisecond, Backoff: TimeDuration(2 * time.Second), Limit: 7}, direct)

	var prefixed testSectionConfig
	require.NoError(t, NewKeyPrefixedDataProvider(va, "client").UnmarshalKey("", &prefixed, WithDurationHook()))
	require.Equal(t, direct, prefixed)

	var root struct {
		Client testSectionConfig `mapstructure:"client"`
	}
	require.NoError(t, va.UnmarshalKey("", &root, WithDurationHook()))
	require.Equal(t, direct, root.Client)

	require.NoError(t, va.SetFromReader(bytes.NewBufferString(`{"client":{"backoff":"later"}}`), DataTypeJSON))
	err := va.UnmarshalKey("client", &testSectionConfig{}, WithDurationHook())
	require.ErrorContains(t, err, "client: ")
	require.ErrorContains(t, err, "invalid time duration format (later)")
}
