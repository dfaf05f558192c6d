package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), nil, Config{ServiceName: "churchconsole"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWithEndpoint(t *testing.T) {
	// the exporter connects lazily, so no collector is needed here
	shutdown, err := Init(context.Background(), nil, Config{
		Endpoint:    "localhost:4318",
		ServiceName: "churchconsole",
		Environment: "test",
		Insecure:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
}
