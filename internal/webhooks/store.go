package webhooks

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

const (
	pathLength  = 15
	pathCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GeneratePath returns a random URL-safe path segment for a new endpoint.
func GeneratePath() string {
	result := make([]byte, pathLength)
	charsetLen := big.NewInt(int64(len(pathCharset)))

	for i := 0; i < pathLength; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			num = big.NewInt(0)
		}
		result[i] = pathCharset[num.Int64()]
	}

	return string(result)
}

// SecretSealer encrypts verification secrets at rest. *credentials.Sealer
// satisfies it.
type SecretSealer interface {
	Seal(plaintext, associated []byte) (string, error)
	Open(sealed string, associated []byte) ([]byte, error)
}

// ErrNoSealer is returned when an endpoint carries a verification secret but
// the store was built without a sealer.
var ErrNoSealer = errors.New("verification secret requires an encryption key")

// Store handles database operations for webhook endpoints.
type Store struct {
	db     *database.DB
	sealer SecretSealer
}

// NewStore builds a store. sealer may be nil when no endpoint uses a
// verification secret.
func NewStore(db *database.DB, sealer SecretSealer) *Store {
	return &Store{db: db, sealer: sealer}
}

const endpointColumns = `id, path, workflow_id, is_active, verification, last_called_at, call_count, created_at, updated_at`

// Create inserts a new endpoint. An empty Path is filled with GeneratePath.
func (s *Store) Create(ctx context.Context, e *Endpoint) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Path == "" {
		e.Path = GeneratePath()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	verification, err := s.marshalVerification(e.Path, e.Verification)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_endpoints (id, path, workflow_id, is_active, verification, call_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, e.ID, e.Path, e.WorkflowID, e.IsActive, verification,
		database.FormatTime(e.CreatedAt), database.FormatTime(e.UpdatedAt))
	if err != nil {
		err = database.ClassifyError(err)
		if errors.Is(err, database.ErrUniqueViolation) {
			return fmt.Errorf("%w: %s", ErrPathTaken, e.Path)
		}
		return fmt.Errorf("inserting webhook endpoint: %w", err)
	}
	return nil
}

// Upsert inserts e or updates the endpoint that already owns e.Path. Counters
// of an existing endpoint are preserved.
func (s *Store) Upsert(ctx context.Context, e *Endpoint) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	verification, err := s.marshalVerification(e.Path, e.Verification)
	if err != nil {
		return err
	}
	now := database.Now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_endpoints (id, path, workflow_id, is_active, verification, call_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			is_active = excluded.is_active,
			verification = excluded.verification,
			updated_at = excluded.updated_at
	`, e.ID, e.Path, e.WorkflowID, e.IsActive, verification, now, now)
	if err != nil {
		return fmt.Errorf("upserting webhook endpoint: %w", database.ClassifyError(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = ?`, id)
	e, err := s.scanEndpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEndpointNotFound
		}
		return nil, fmt.Errorf("getting webhook endpoint: %w", err)
	}
	return e, nil
}

// GetActiveByPath resolves an active endpoint. Missing and inactive endpoints
// both return ErrEndpointNotFound.
func (s *Store) GetActiveByPath(ctx context.Context, path string) (*Endpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE path = ? AND is_active = 1`, path)
	e, err := s.scanEndpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEndpointNotFound
		}
		return nil, fmt.Errorf("getting webhook endpoint by path: %w", err)
	}
	return e, nil
}

// RecordCall stamps last_called_at and increments call_count in one statement.
// It returns ErrEndpointNotFound if the endpoint was removed or deactivated
// since it was resolved.
func (s *Store) RecordCall(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE webhook_endpoints
		SET call_count = call_count + 1, last_called_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1
	`, database.FormatTime(at), database.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("recording webhook call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording webhook call: %w", err)
	}
	if n == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_endpoints SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, database.Now(), id)
	if err != nil {
		return fmt.Errorf("updating webhook endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

// ListByWorkflow returns the endpoints that trigger workflowID.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID string) ([]*Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE workflow_id = ? ORDER BY created_at ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying webhook endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []*Endpoint{}
	for rows.Next() {
		e, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook endpoint row: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook endpoint rows: %w", err)
	}
	return endpoints, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEndpoint(row scanner) (*Endpoint, error) {
	var (
		e                    Endpoint
		verification         sql.NullString
		lastCalledAt         sql.NullString
		createdAt, updatedAt string
	)

	if err := row.Scan(&e.ID, &e.Path, &e.WorkflowID, &e.IsActive, &verification,
		&lastCalledAt, &e.CallCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if verification.Valid && verification.String != "" {
		v, err := s.unmarshalVerification(e.Path, verification.String)
		if err != nil {
			return nil, err
		}
		e.Verification = v
	}

	e.CreatedAt = database.ParseTime(createdAt)
	e.UpdatedAt = database.ParseTime(updatedAt)
	e.LastCalledAt = database.ParseNullTime(lastCalledAt)

	return &e, nil
}

// The secret is sealed on its own and bound to the endpoint path, which is
// stable across upserts. Type and header stay readable.
func verificationAD(path string) []byte {
	return []byte(path + ":verification")
}

func (s *Store) marshalVerification(path string, v *Verification) (any, error) {
	if v == nil {
		return nil, nil
	}
	stored := *v
	if stored.Secret != "" {
		if s.sealer == nil {
			return nil, ErrNoSealer
		}
		sealed, err := s.sealer.Seal([]byte(v.Secret), verificationAD(path))
		if err != nil {
			return nil, fmt.Errorf("sealing verification secret: %w", err)
		}
		stored.Secret = sealed
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshaling verification: %w", err)
	}
	return string(b), nil
}

func (s *Store) unmarshalVerification(path, raw string) (*Verification, error) {
	var v Verification
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling verification: %w", err)
	}
	if v.Secret != "" {
		if s.sealer == nil {
			return nil, ErrNoSealer
		}
		secret, err := s.sealer.Open(v.Secret, verificationAD(path))
		if err != nil {
			return nil, fmt.Errorf("opening verification secret: %w", err)
		}
		v.Secret = string(secret)
	}
	return &v, nil
}
