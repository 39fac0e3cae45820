package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/telemetry-envelope/config"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	schedCfg := schedulerConfig(cfg, logger)
	assert.Equal(t, 15*time.Minute, schedCfg.Interval)
	assert.Equal(t, 2*time.Second, schedCfg.Retry.InitialInterval)
	assert.Equal(t, 30*time.Second, schedCfg.Retry.MaxInterval)
	assert.Equal(t, uint64(4), schedCfg.Retry.MaxRetries)

	cfg.Schedule.Once = true
	schedCfg = schedulerConfig(cfg, logger)
	assert.Zero(t, schedCfg.Interval, "once overrides the interval")
	assert.Equal(t, 2*time.Second, schedCfg.Retry.InitialInterval)
}

func TestParseSections(t *testing.T) {
	sections, err := parseSections([]string{"battery", "wifi", "loc_gps"})
	require.NoError(t, err)
	assert.Equal(t, config.SectionsConfig{Battery: true, Wifi: true, LocGPS: true}, sections)

	_, err = parseSections([]string{"battery", "bluetooth"})
	require.ErrorIs(t, err, interfaces.ErrConfig)
}
