// Package mcp provides MCP (Model Context Protocol) client infrastructure
// for connecting to and executing tools on MCP services.
//
// Connections are isolated per (user_id, service_name) pair: two users never
// share a subprocess or session against the same service, so a credential or
// working-set leak in one user's connection cannot cross into another's.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/metrics"
	"github.com/flowforge/orchestrator/pkg/version"
)

// ErrConnectionLimitExceeded is returned by Connect when a user is already
// at their configured per-user connection ceiling (§5 "the Manager SHOULD
// enforce a per-user ceiling on concurrent subprocesses").
var ErrConnectionLimitExceeded = errors.New("mcp: per-user connection limit exceeded")

// connectionKey identifies one isolated MCP connection.
type connectionKey struct {
	userID      string
	serviceName string
}

func (k connectionKey) String() string {
	return k.userID + "/" + k.serviceName
}

// connection holds the live session state for one (user, service) pair.
type connection struct {
	session *mcpsdk.ClientSession
	client  *mcpsdk.Client

	toolCache   []*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	// reinitMu serializes recreation attempts for this specific connection,
	// preventing a thundering herd of reconnects from one user's retries.
	reinitMu sync.Mutex
}

// CredentialSource supplies per-user credentials to inject into a service
// connection at launch time (environment variables for stdio transports,
// headers for HTTP/SSE transports). Implemented by pkg/auth.Injector.
type CredentialSource interface {
	// Prepare returns the environment variables and bearer token to use when
	// connecting userID to serviceName. Returns an error (typically
	// auth.ErrMissingCredentials) when required credentials are absent.
	Prepare(ctx context.Context, userID, serviceName string, required []string) (env map[string]string, bearerToken string, err error)
}

// Manager owns all MCP connections for the orchestrator, keyed by
// (user_id, service_name). It is the single entry point the Workflow
// Execution Engine uses to list and call tools.
type Manager struct {
	registry    *config.ServiceRegistry
	credentials CredentialSource

	mu          sync.RWMutex
	connections map[connectionKey]*connection

	logger  *slog.Logger
	metrics *metrics.Registry
}

// SetMetrics attaches a metrics registry; the connection gauge updates on
// every subsequent connect/disconnect. Safe to call once at startup before
// any connection traffic.
func (m *Manager) SetMetrics(reg *metrics.Registry) {
	m.metrics = reg
}

// NewManager creates a new connection manager. credentials may be nil when
// no service requires injected credentials (e.g. in tests).
func NewManager(registry *config.ServiceRegistry, credentials CredentialSource) *Manager {
	return &Manager{
		registry:    registry,
		credentials: credentials,
		connections: make(map[connectionKey]*connection),
		logger:      slog.Default(),
	}
}

// Connect establishes (or reuses) the connection for userID against
// serviceName. Safe to call repeatedly; idempotent once connected.
func (m *Manager) Connect(ctx context.Context, userID, serviceName string) error {
	key := connectionKey{userID: userID, serviceName: serviceName}
	return m.connectLocked(ctx, key)
}

func (m *Manager) connectLocked(ctx context.Context, key connectionKey) error {
	m.mu.RLock()
	if _, exists := m.connections[key]; exists {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	svcCfg, err := m.registry.Get(key.serviceName)
	if err != nil {
		return fmt.Errorf("service %q not found in registry: %w", key.serviceName, err)
	}

	if svcCfg.MaxConnectionsPerUser > 0 {
		m.mu.RLock()
		userConns := 0
		for k := range m.connections {
			if k.userID == key.userID {
				userConns++
			}
		}
		m.mu.RUnlock()
		if userConns >= svcCfg.MaxConnectionsPerUser {
			return fmt.Errorf("%w: user %q already holds %d connection(s), service %q caps at %d",
				ErrConnectionLimitExceeded, key.userID, userConns, key.serviceName, svcCfg.MaxConnectionsPerUser)
		}
	}

	var env map[string]string
	var bearerToken string
	if m.credentials != nil {
		env, bearerToken, err = m.credentials.Prepare(ctx, key.userID, key.serviceName, svcCfg.RequiredCredentialKeys)
		if err != nil {
			return fmt.Errorf("preparing credentials for %s: %w", key, err)
		}
	}

	transportCfg := svcCfg.Transport
	if bearerToken != "" {
		transportCfg.BearerToken = bearerToken
	}

	transport, err := createTransport(transportCfg, env)
	if err != nil {
		return fmt.Errorf("failed to create transport for %s: %w", key, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, MCPInitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("failed to connect %s: %w", key, err)
	}

	m.mu.Lock()
	m.connections[key] = &connection{session: session, client: client}
	count := len(m.connections)
	m.mu.Unlock()
	m.metrics.SetMCPConnections(count)

	m.logger.Info("MCP connection established", "user_id", key.userID, "service", key.serviceName)
	return nil
}

// ListTools returns tools from a connection, connecting lazily if needed.
func (m *Manager) ListTools(ctx context.Context, userID, serviceName string) ([]*mcpsdk.Tool, error) {
	key := connectionKey{userID: userID, serviceName: serviceName}

	if err := m.connectLocked(ctx, key); err != nil {
		return nil, err
	}

	conn, err := m.getConnection(key)
	if err != nil {
		return nil, err
	}

	conn.toolCacheMu.RLock()
	if conn.toolCache != nil {
		cached := conn.toolCache
		conn.toolCacheMu.RUnlock()
		return cached, nil
	}
	conn.toolCacheMu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	result, err := conn.session.ListTools(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools from %s: %w", key, err)
	}

	tools := result.Tools
	if tools == nil {
		tools = []*mcpsdk.Tool{}
	}
	conn.toolCacheMu.Lock()
	conn.toolCache = tools
	conn.toolCacheMu.Unlock()

	return tools, nil
}

// CallTool executes a tool call on the connection for (userID, serviceName),
// connecting lazily if needed. On a recoverable failure it retries once
// after a jittered backoff, recreating the session first if the failure was
// a transport-level break.
func (m *Manager) CallTool(ctx context.Context, userID, serviceName, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	key := connectionKey{userID: userID, serviceName: serviceName}

	if err := m.connectLocked(ctx, key); err != nil {
		return nil, err
	}

	params := &mcpsdk.CallToolParams{Name: toolName, Arguments: args}

	result, err := m.callToolOnce(ctx, key, params)
	if err == nil {
		return result, nil
	}

	action := ClassifyError(err)
	if action == NoRetry {
		return nil, err
	}

	m.logger.Info("MCP call failed, retrying",
		"user_id", userID, "service", serviceName, "tool", toolName,
		"action", action, "error", err)

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if action == RetryNewSession {
		if err := m.recreateConnection(ctx, key); err != nil {
			return nil, fmt.Errorf("connection recreation failed for %s: %w", key, err)
		}
	}

	result, err = m.callToolOnce(ctx, key, params)
	if err != nil {
		return nil, fmt.Errorf("retry failed for %s %s: %w", key, toolName, err)
	}
	return result, nil
}

func (m *Manager) callToolOnce(ctx context.Context, key connectionKey, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	conn, err := m.getConnection(key)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	return conn.session.CallTool(opCtx, params)
}

// recreateConnection tears down and recreates the connection for one key.
// Uses the connection's own mutex so recreation of (alice, k8s) never blocks
// on recreation of (bob, k8s).
func (m *Manager) recreateConnection(ctx context.Context, key connectionKey) error {
	conn, err := m.getConnection(key)
	if err == nil {
		conn.reinitMu.Lock()
		defer conn.reinitMu.Unlock()

		_ = conn.session.Close()
	}

	m.mu.Lock()
	delete(m.connections, key)
	m.mu.Unlock()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()

	return m.connectLocked(reinitCtx, key)
}

func (m *Manager) getConnection(key connectionKey) (*connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, exists := m.connections[key]
	if !exists {
		return nil, fmt.Errorf("no connection for %s", key)
	}
	return conn, nil
}

// InvalidateToolCache forces the next ListTools call for (userID, serviceName)
// to re-probe the connection instead of returning a cached tool list.
func (m *Manager) InvalidateToolCache(userID, serviceName string) {
	conn, err := m.getConnection(connectionKey{userID: userID, serviceName: serviceName})
	if err != nil {
		return
	}
	conn.toolCacheMu.Lock()
	conn.toolCache = nil
	conn.toolCacheMu.Unlock()
}

// Disconnect closes and forgets the connection for (userID, serviceName).
func (m *Manager) Disconnect(userID, serviceName string) error {
	key := connectionKey{userID: userID, serviceName: serviceName}

	m.mu.Lock()
	conn, exists := m.connections[key]
	if exists {
		delete(m.connections, key)
	}
	count := len(m.connections)
	m.mu.Unlock()

	if !exists {
		return nil
	}
	m.metrics.SetMCPConnections(count)
	return conn.session.Close()
}

// DisconnectUser closes every connection belonging to userID, e.g. when a
// user's session ends.
func (m *Manager) DisconnectUser(userID string) {
	m.mu.Lock()
	var toClose []*connection
	for key, conn := range m.connections {
		if key.userID == userID {
			toClose = append(toClose, conn)
			delete(m.connections, key)
		}
	}
	count := len(m.connections)
	m.mu.Unlock()
	m.metrics.SetMCPConnections(count)

	for _, conn := range toClose {
		_ = conn.session.Close()
	}
}

// ListConnected returns the service names userID currently holds a live
// connection against.
func (m *Manager) ListConnected(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var services []string
	for key := range m.connections {
		if key.userID == userID {
			services = append(services, key.serviceName)
		}
	}
	return services
}

// GetClient returns the underlying MCP client for (serviceName, userID),
// connecting lazily if needed. Intended for callers that need direct access
// to client capabilities beyond ListTools/CallTool (e.g. resource or prompt
// requests added by a future service).
func (m *Manager) GetClient(ctx context.Context, serviceName, userID string) (*mcpsdk.Client, error) {
	key := connectionKey{userID: userID, serviceName: serviceName}

	if err := m.connectLocked(ctx, key); err != nil {
		return nil, err
	}

	conn, err := m.getConnection(key)
	if err != nil {
		return nil, err
	}
	return conn.client, nil
}

// ActiveConnections returns the number of live connections, for metrics.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close shuts down every connection the manager holds. Used during graceful
// shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for key, conn := range m.connections {
		if err := conn.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection %s: %w", key, err)
		}
	}
	m.connections = make(map[connectionKey]*connection)
	return firstErr
}
