package mcp

import (
	"context"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/pkg/config"
)

func newTestManager(t *testing.T, services map[string]*config.ServiceConfig) *Manager {
	t.Helper()
	return NewManager(config.NewServiceRegistry(services), nil)
}

func TestListConnectedFiltersByUser(t *testing.T) {
	m := newTestManager(t, nil)

	m.InjectSession("alice", "weather", &mcpsdk.Client{}, &mcpsdk.ClientSession{})
	m.InjectSession("alice", "k8s", &mcpsdk.Client{}, &mcpsdk.ClientSession{})
	m.InjectSession("bob", "weather", &mcpsdk.Client{}, &mcpsdk.ClientSession{})

	aliceServices := m.ListConnected("alice")
	assert.ElementsMatch(t, []string{"weather", "k8s"}, aliceServices)

	bobServices := m.ListConnected("bob")
	assert.ElementsMatch(t, []string{"weather"}, bobServices)

	assert.Empty(t, m.ListConnected("carol"))
}

func TestGetClientReturnsInjectedClient(t *testing.T) {
	m := newTestManager(t, nil)
	client := &mcpsdk.Client{}
	m.InjectSession("alice", "weather", client, &mcpsdk.ClientSession{})

	got, err := m.GetClient(context.Background(), "weather", "alice")
	require.NoError(t, err)
	assert.Same(t, client, got)
}

func TestGetClientUnknownServiceFails(t *testing.T) {
	m := newTestManager(t, map[string]*config.ServiceConfig{})

	_, err := m.GetClient(context.Background(), "missing", "alice")
	assert.Error(t, err)
}

func TestConnectLockedEnforcesPerUserConnectionCap(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"weather": {Transport: config.TransportConfig{}, MaxConnectionsPerUser: 1},
		"k8s":     {Transport: config.TransportConfig{}, MaxConnectionsPerUser: 1},
	}
	m := newTestManager(t, services)

	// Simulate alice already holding one connection (to any service); a
	// connect attempt against another capped service should be refused
	// since the cap is enforced against the user's total, not a
	// same-service count that could never exceed 1.
	m.InjectSession("alice", "weather", &mcpsdk.Client{}, &mcpsdk.ClientSession{})

	err := m.connectLocked(context.Background(), connectionKey{userID: "alice", serviceName: "k8s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectionLimitExceeded))
}

func TestConnectLockedUnboundedWhenCapZero(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"weather": {Transport: config.TransportConfig{}},
	}
	m := newTestManager(t, services)
	m.InjectSession("alice", "other", &mcpsdk.Client{}, &mcpsdk.ClientSession{})

	// connectLocked will fail past the cap check (no real transport), but
	// it must not fail with ErrConnectionLimitExceeded when the cap is 0.
	err := m.connectLocked(context.Background(), connectionKey{userID: "alice", serviceName: "weather"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConnectionLimitExceeded))
}
