package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/flowforge/orchestrator/pkg/storage"
)

// PgStore reads MCPAuth records from the mcp_auth table via pkg/storage.
type PgStore struct {
	db *storage.DB
}

// NewPgStore creates a PgStore.
func NewPgStore(db *storage.DB) *PgStore {
	return &PgStore{db: db}
}

// Get returns nil, nil if no record exists for (userID, serviceName) —
// the caller (Injector.Prepare) treats a nil record as missing auth.
func (s *PgStore) Get(ctx context.Context, userID, serviceName string) (*Record, error) {
	var (
		authDataJSON []byte
		isVerified   bool
		verifiedAt   *time.Time
	)

	row := s.db.Pool.QueryRow(ctx, `
		SELECT auth_data, is_verified, verified_at FROM mcp_auth
		WHERE user_id = $1 AND service_name = $2
	`, userID, serviceName)

	if err := row.Scan(&authDataJSON, &isVerified, &verifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var authData map[string]string
	if err := json.Unmarshal(authDataJSON, &authData); err != nil {
		return nil, err
	}

	rec := &Record{
		UserID:      userID,
		ServiceName: serviceName,
		AuthData:    authData,
		IsVerified:  isVerified,
	}
	if verifiedAt != nil {
		rec.VerifiedAt = *verifiedAt
	}
	return rec, nil
}
