package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/typeid"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	display_name TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scene_snapshots (
	id         TEXT PRIMARY KEY,
	scene_id   TEXT NOT NULL,
	version    BIGINT NOT NULL,
	elements   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (scene_id, version)
);
`

// PostgresStore appends a snapshot row on every save; loads read the
// highest version.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the tables if they are missing.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LoadScene(ctx context.Context, sceneID string) ([]element.Element, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT elements FROM scene_snapshots WHERE scene_id = $1 ORDER BY version DESC LIMIT 1`,
		sceneID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return decodeElements(data)
}

func (s *PostgresStore) SaveScene(ctx context.Context, sceneID string, els []element.Element) (int64, error) {
	data, err := encodeElements(els)
	if err != nil {
		return 0, err
	}

	var version int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO scene_snapshots (id, scene_id, version, elements)
		 SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3 FROM scene_snapshots WHERE scene_id = $2
		 RETURNING version`,
		typeid.NewSnapshotID(), sceneID, data,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password, display_name) VALUES ($1, lower($2), $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email = lower($1)`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password, display_name, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
