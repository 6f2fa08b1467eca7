package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"session-authority/internal/claims"
	"session-authority/internal/db"
	"session-authority/internal/session/domain"
)

const selectColumns = `
	id, user_id, access_jti, refresh_jti, email, role, scopes,
	created_at, last_active_at, revoked_at, is_active,
	COALESCE(device_info, '') AS device_info,
	COALESCE(ip_address, '') AS ip_address,
	COALESCE(location, '') AS location`

// PostgresRepository stores sessions in the token_sessions table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by pool. The pool
// is owned by the caller.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type sessionRow struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	AccessJTI    string     `db:"access_jti"`
	RefreshJTI   string     `db:"refresh_jti"`
	Email        string     `db:"email"`
	Role         string     `db:"role"`
	Scopes       []string   `db:"scopes"`
	CreatedAt    time.Time  `db:"created_at"`
	LastActiveAt time.Time  `db:"last_active_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	IsActive     bool       `db:"is_active"`
	DeviceInfo   string     `db:"device_info"`
	IPAddress    string     `db:"ip_address"`
	Location     string     `db:"location"`
}

func (r *sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:           r.ID,
		UserID:       r.UserID,
		AccessJTI:    r.AccessJTI,
		RefreshJTI:   r.RefreshJTI,
		Email:        r.Email,
		Role:         claims.Role(r.Role),
		Scopes:       claims.ParseScopes(r.Scopes),
		CreatedAt:    r.CreatedAt.UTC(),
		LastActiveAt: r.LastActiveAt.UTC(),
		RevokedAt:    r.RevokedAt,
		IsActive:     r.IsActive,
		DeviceInfo:   r.DeviceInfo,
		IPAddress:    r.IPAddress,
		Location:     r.Location,
	}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Exec(ctx, r.pool, `
		INSERT INTO token_sessions (
			id, user_id, access_jti, refresh_jti, email, role, scopes,
			created_at, last_active_at, is_active, device_info, ip_address, location
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.AccessJTI, s.RefreshJTI, s.Email, string(s.Role), claims.Strings(s.Scopes),
		s.CreatedAt, s.LastActiveAt, s.IsActive,
		nullIfEmpty(s.DeviceInfo), nullIfEmpty(s.IPAddress), nullIfEmpty(s.Location))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return storeError("create session", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getOne(ctx, "get session", `SELECT`+selectColumns+` FROM token_sessions WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByAccessJTI(ctx context.Context, jti string) (*domain.Session, error) {
	return r.getOne(ctx, "find session by access jti", `SELECT`+selectColumns+` FROM token_sessions WHERE access_jti = $1`, jti)
}

func (r *PostgresRepository) FindByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	return r.getOne(ctx, "find session by refresh jti", `SELECT`+selectColumns+` FROM token_sessions WHERE refresh_jti = $1`, jti)
}

func (r *PostgresRepository) getOne(ctx context.Context, op, query string, arg string) (*domain.Session, error) {
	var row sessionRow
	if err := db.Get(ctx, r.pool, &row, query, arg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, storeError(op, err)
	}
	return row.toDomain(), nil
}

// Revoke keeps the first revocation timestamp so repeated calls are no-ops.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := db.Exec(ctx, r.pool, `
		UPDATE token_sessions
		SET is_active = FALSE, revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1`, id, at)
	if err != nil {
		return storeError("revoke session", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	tag, err := db.Exec(ctx, r.pool, `
		UPDATE token_sessions
		SET is_active = FALSE, revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1 AND is_active`, userID, at)
	if err != nil {
		return 0, storeError("revoke user sessions", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, id, oldRefreshJTI, newAccessJTI, newRefreshJTI string, at time.Time) error {
	tag, err := db.Exec(ctx, r.pool, `
		UPDATE token_sessions
		SET access_jti = $3, refresh_jti = $4, last_active_at = $5
		WHERE id = $1 AND refresh_jti = $2 AND is_active`,
		id, oldRefreshJTI, newAccessJTI, newRefreshJTI, at)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return storeError("rotate session", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRotationConflict
	}
	return nil
}

func (r *PostgresRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := db.Exec(ctx, r.pool, `
		UPDATE token_sessions SET last_active_at = GREATEST(last_active_at, $2)
		WHERE id = $1 AND is_active`, id, at)
	if err != nil {
		return storeError("touch session", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	var rows []sessionRow
	err := db.Select(ctx, r.pool, &rows, `SELECT`+selectColumns+`
		FROM token_sessions
		WHERE user_id = $1 AND is_active
		ORDER BY last_active_at DESC, id`, userID)
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	out := make([]*domain.Session, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, r.pool, `DELETE FROM token_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, storeError("sweep sessions", err)
	}
	return tag.RowsAffected(), nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
