package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter-ai/outfitter/internal/config"
	"github.com/outfitter-ai/outfitter/internal/log"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{Enabled: false}, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_DefaultEndpoint(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:     true,
		ServiceName: "outfitter-test",
		Environment: "test",
	}

	shutdown, err := Setup(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No collector is listening; shutdown must still flush cleanly or
	// report the export failure without panicking.
	_ = shutdown(context.Background())
}

func TestSetup_CollectorUnavailable(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:1",
		ServiceName: "outfitter-test",
		Environment: "test",
	}

	shutdown, err := Setup(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	_ = shutdown(context.Background())
}
