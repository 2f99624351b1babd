package wiring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dexgs/user-sites/internal/config"
	"github.com/dexgs/user-sites/internal/state"
)

func TestBuildAppliesConfigOverridesToSharedState(t *testing.T) {
	cfg := config.ServerConfig{
		Port:                   8080,
		Upstream:               "http://example.test",
		MaxConcurrentAccessors: 10,
	}

	server := Build(cfg)

	assert.Equal(t, 10, server.State.MaxConcurrentAccessors)
	assert.Equal(t, "http://example.test", server.Dispatcher.Upstream)
	assert.Same(t, server.Metrics, server.State.Metrics, "shared state should be wired to the same metrics registry the server holds")
}

func TestBuildLeavesDefaultsWhenConfigIsZeroValue(t *testing.T) {
	server := Build(config.ServerConfig{Port: 9090})

	assert.Equal(t, state.DefaultMaxConcurrentAccessors, server.State.MaxConcurrentAccessors)
	assert.Equal(t, state.DefaultHysteresisHold, server.State.HysteresisHold)
}

func TestStopSyncsLoggerWithoutError(t *testing.T) {
	server := Build(config.ServerConfig{Port: 8080})
	assert.NoError(t, server.Stop(context.Background()))
}
