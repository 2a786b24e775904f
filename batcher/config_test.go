/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package batcher

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-reqkit/config"
)

func TestConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg))
	require.Equal(t, DefaultInterval, time.Duration(cfg.Interval))
	require.Equal(t, 0, cfg.MaxBatchSize)

	cfg = NewConfig()
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("batcher:\n  interval: 20ms\n  maxBatchSize: 10\n"), config.DataTypeYAML, cfg))
	b, err := NewFromConfig(cfg, Opts{})
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, b.interval)
	require.Equal(t, 10, b.maxBatchSize)

	cfg = NewConfig("sync.batcher")
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"sync":{"batcher":{"interval":"100ms"}}}`), config.DataTypeJSON, cfg))
	require.Equal(t, 100*time.Millisecond, time.Duration(cfg.Interval))
	require.Equal(t, 0, cfg.MaxBatchSize)

	cfg = NewConfig()
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"batcher":{"maxBatchSize":3}}`), config.DataTypeJSON, cfg))
	require.Equal(t, DefaultInterval, time.Duration(cfg.Interval))
	require.Equal(t, 3, cfg.MaxBatchSize)

	err = config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"batcher":{"interval":"soon"}}`), config.DataTypeJSON, NewConfig())
	require.ErrorContains(t, err, "invalid time duration format (soon)")

	err = config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"batcher":{"interval":"0s"}}`), config.DataTypeJSON, NewConfig())
	require.EqualError(t, err, "batcher.interval: should be positive, got 0s")
}
