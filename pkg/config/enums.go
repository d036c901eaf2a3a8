package config

// TransportType defines MCP service transport types.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses HTTP/HTTPS JSON-RPC (streamable).
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events.
	TransportTypeSSE TransportType = "sse"
)

// IsValid checks if the transport type is valid.
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// LLMProviderType defines supported LLM providers for Planner/Observer/Resolver calls.
type LLMProviderType string

const (
	LLMProviderTypeGoogle    LLMProviderType = "google"
	LLMProviderTypeOpenAI    LLMProviderType = "openai"
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeGoogle, LLMProviderTypeOpenAI, LLMProviderTypeAnthropic:
		return true
	default:
		return false
	}
}

// LLMRole distinguishes the four request/response call shapes a provider
// may be asked to serve. Planner/Observer/Resolver calls are buffered
// request-response; Formatter calls are streamed.
type LLMRole string

const (
	LLMRolePlanner   LLMRole = "planner"
	LLMRoleObserver  LLMRole = "observer"
	LLMRoleResolver  LLMRole = "resolver"
	LLMRoleFormatter LLMRole = "formatter"
)

// IsValid reports whether the role is one of the known call shapes.
func (r LLMRole) IsValid() bool {
	switch r {
	case LLMRolePlanner, LLMRoleObserver, LLMRoleResolver, LLMRoleFormatter:
		return true
	default:
		return false
	}
}
