package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/environment"
	"github.com/cataloghq/cataloghq/pkg/logger"
)

func TestNewJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "billing")),
	)

	log.Info("subscription updated", logger.Provider("paddle"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "subscription updated", record["msg"])
	assert.Equal(t, "billing", record["service"])
	assert.Equal(t, "paddle", record["provider"])
}

func TestEnvironmentPresets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithEnvironment(environment.Development, "billing"),
		logger.WithOutput(&buf),
	)

	log.Debug("debug enabled in development")
	assert.Contains(t, buf.String(), "debug enabled in development")
	assert.Contains(t, buf.String(), "env=development")
}

func TestProductionDropsDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithEnvironment(environment.Production, "billing"),
		logger.WithOutput(&buf),
	)

	log.Debug("should be dropped")
	assert.Empty(t, buf.String())
}

func TestContextExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(environment.LoggerExtractor()),
	)

	ctx := environment.WithContext(context.Background(), environment.Staging)
	log.InfoContext(ctx, "with env")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "staging", record["env"])
}

func TestInvalidFormatPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat("xml"))
	})
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))

	attr := logger.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
}
