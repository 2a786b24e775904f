/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-reqkit/config"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg))
		require.Equal(t, DefaultParams(), cfg.Params())
	})

	t.Run("loader", func(t *testing.T) {
		cfg := NewConfig("bookings.retry")
		cfgData := `{"bookings":{"retry":{"maxRetries":5,"baseDelay":"250ms","attemptTimeout":"3s"}}}`
		require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(cfgData), config.DataTypeJSON, cfg))
		require.Equal(t, Params{MaxRetries: 5, BaseDelay: 250 * time.Millisecond, AttemptTimeout: 3 * time.Second},
			cfg.Params())
	})

	t.Run("yaml.Unmarshal", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("maxRetries: 2\nbaseDelay: 1s\nattemptTimeout: 500ms\n"), &cfg))
		require.Equal(t, Params{MaxRetries: 2, BaseDelay: time.Second, AttemptTimeout: 500 * time.Millisecond},
			cfg.Params())
	})

	t.Run("invalid max retries", func(t *testing.T) {
		err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"retry":{"maxRetries":0}}`), config.DataTypeJSON, NewConfig())
		require.EqualError(t, err, "retry.maxRetries: should be positive, got 0")
	})
}
