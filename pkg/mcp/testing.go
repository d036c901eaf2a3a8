package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// InjectSession wires a pre-connected MCP SDK session directly into the
// manager, bypassing the real Connect() transport-creation path. Intended
// for test infrastructure that runs an in-memory MCP service.
func (m *Manager) InjectSession(userID, serviceName string, sdkClient *mcpsdk.Client, session *mcpsdk.ClientSession) {
	key := connectionKey{userID: userID, serviceName: serviceName}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[key] = &connection{session: session, client: sdkClient}
}
