// Package auth implements the Credential Store & Auth Injector (§4.B):
// reading per-user MCP credential records and deriving the environment a
// service connection should be spawned with.
package auth

import (
	"context"
	"fmt"
	"time"
)

// Record is one persisted MCPAuth row.
type Record struct {
	UserID      string
	ServiceName string
	AuthData    map[string]string
	IsVerified  bool
	VerifiedAt  time.Time
}

// Store reads MCPAuth records. The engine reads and never writes this
// data — it is updated out of band by the auth subsystem (§6 "Persisted
// state consumed").
type Store interface {
	Get(ctx context.Context, userID, serviceName string) (*Record, error)
}

// ErrMissingAuth is returned by Injector.Prepare when a connection cannot
// be authorized. It carries enough detail for the caller to surface
// mcp_connection_error{type=missing_auth, missing:[...]}.
type ErrMissingAuth struct {
	Service     string
	MissingKeys []string
}

func (e *ErrMissingAuth) Error() string {
	return fmt.Sprintf("missing auth for service %q: missing keys %v", e.Service, e.MissingKeys)
}

// Injector derives a connection environment from a stored credential
// record, implementing pkg/mcp.CredentialSource. Modeled on the teacher's
// pkg/masking service-construction style — optional, nil-safe, constructed
// once and injected — rather than any teacher auth package, since the
// teacher doesn't model per-user external service credentials (its MCP
// servers are operator-configured, not per-user authenticated).
type Injector struct {
	store Store
	// aliases maps a required env key to an alternate auth_data key it may
	// be stored under, for services whose declared env var name differs
	// from the credential field name (e.g. "GITHUB_TOKEN" stored as "token").
	aliases map[string]string
}

// NewInjector creates an Injector over store. aliases may be nil.
func NewInjector(store Store, aliases map[string]string) *Injector {
	return &Injector{store: store, aliases: aliases}
}

// Prepare implements pkg/mcp.CredentialSource. It returns the environment
// variables required should be populated with, sourced from the user's
// verified auth record for serviceName.
func (inj *Injector) Prepare(ctx context.Context, userID, serviceName string, required []string) (map[string]string, string, error) {
	if len(required) == 0 {
		return nil, "", nil
	}

	record, err := inj.store.Get(ctx, userID, serviceName)
	if err != nil {
		return nil, "", &ErrMissingAuth{Service: serviceName, MissingKeys: required}
	}
	if record == nil || !record.IsVerified {
		return nil, "", &ErrMissingAuth{Service: serviceName, MissingKeys: required}
	}

	env := make(map[string]string, len(required))
	var missing []string
	for _, key := range required {
		if v, ok := record.AuthData[key]; ok {
			env[key] = v
			continue
		}
		if alias, ok := inj.aliases[key]; ok {
			if v, ok := record.AuthData[alias]; ok {
				env[key] = v
				continue
			}
		}
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		return nil, "", &ErrMissingAuth{Service: serviceName, MissingKeys: missing}
	}

	return env, "", nil
}
