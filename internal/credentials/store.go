package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

var ErrNotFound = errors.New("credential not found")

// Store persists credentials. Secret fields are sealed before they reach the database.
type Store struct {
	db     *database.DB
	sealer *Sealer
}

func NewStore(db *database.DB, sealer *Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

// Create inserts c as a new row. Every call creates a row; existing credentials
// for the same provider are left untouched.
func (s *Store) Create(ctx context.Context, c *Credential) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}

	data, err := json.Marshal(c.Data)
	if err != nil {
		return fmt.Errorf("marshaling credential data: %w", err)
	}
	sealedData, err := s.sealer.Seal(data, associatedData(c.ID, "data"))
	if err != nil {
		return fmt.Errorf("sealing credential data: %w", err)
	}

	var sealedRefresh any
	if c.RefreshToken != "" {
		v, err := s.sealer.Seal([]byte(c.RefreshToken), associatedData(c.ID, "refresh_token"))
		if err != nil {
			return fmt.Errorf("sealing refresh token: %w", err)
		}
		sealedRefresh = v
	}

	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling credential metadata: %w", err)
	}

	var scope any
	if c.Scope != "" {
		scope = c.Scope
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, name, type, provider, data, refresh_token, expires_at, scope, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.UserID,
		c.Name,
		string(c.Type),
		c.Provider,
		sealedData,
		sealedRefresh,
		database.NullTime(c.ExpiresAt),
		scope,
		string(metadata),
		database.FormatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting credential: %w", database.ClassifyError(err))
	}

	return nil
}

// Get loads a credential and decrypts its secrets.
func (s *Store) Get(ctx context.Context, id string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, provider, data, refresh_token, expires_at, scope, metadata, created_at
		FROM credentials WHERE id = ?
	`, id)

	var c Credential
	var sealedData, metadata, createdAt string
	var sealedRefresh, expiresAt, scope sql.NullString

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Provider, &sealedData,
		&sealedRefresh, &expiresAt, &scope, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	data, err := s.sealer.Open(sealedData, associatedData(c.ID, "data"))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &c.Data); err != nil {
		return nil, fmt.Errorf("unmarshaling credential data: %w", err)
	}

	if sealedRefresh.Valid {
		refresh, err := s.sealer.Open(sealedRefresh.String, associatedData(c.ID, "refresh_token"))
		if err != nil {
			return nil, err
		}
		c.RefreshToken = string(refresh)
	}

	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling credential metadata: %w", err)
	}

	c.Scope = scope.String
	c.ExpiresAt = database.ParseNullTime(expiresAt)
	c.CreatedAt = database.ParseTime(createdAt)

	return &c, nil
}

// ListByUser returns the user's credentials, newest first, without secrets.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, provider, expires_at, scope, metadata, created_at
		FROM credentials WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	result := []Summary{}
	for rows.Next() {
		var sum Summary
		var expiresAt, scope sql.NullString
		var metadata, createdAt string

		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Type, &sum.Provider, &expiresAt, &scope, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &sum.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling credential metadata: %w", err)
		}
		sum.Scope = scope.String
		sum.ExpiresAt = database.ParseNullTime(expiresAt)
		sum.CreatedAt = database.ParseTime(createdAt)
		result = append(result, sum)
	}

	return result, rows.Err()
}

// CountByUser returns how many credentials the user owns for provider.
func (s *Store) CountByUser(ctx context.Context, userID, provider string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE user_id = ? AND provider = ?`,
		userID, provider,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting credentials: %w", err)
	}
	return n, nil
}

// associatedData binds a sealed value to its row and column, so ciphertexts
// cannot be moved between credentials or between fields.
func associatedData(id, column string) []byte {
	return []byte(id + ":" + column)
}
