package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.UserRepository = (*UserRepo)(nil)

const userColumns = `id, external_id, email, first_name, last_name, role, status, permissions, access_level, profile, created_at, updated_at`

const upsertUserSQL = `
	INSERT INTO users (
		id, external_id, email, first_name, last_name, role, status, permissions, access_level, profile, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10::jsonb, $11, $11
	)
	ON CONFLICT (external_id) DO UPDATE SET
		email        = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		first_name   = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
		last_name    = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
		role         = CASE WHEN $12::boolean THEN EXCLUDED.role ELSE users.role END,
		permissions  = CASE WHEN $13::boolean THEN EXCLUDED.permissions ELSE users.permissions END,
		access_level = CASE WHEN $14::boolean THEN EXCLUDED.access_level ELSE users.access_level END,
		profile      = CASE WHEN $15::boolean THEN EXCLUDED.profile ELSE users.profile END,
		updated_at   = EXCLUDED.updated_at
	RETURNING ` + userColumns

// UserRepo provides database operations for application users.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	newID        func() string
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: RealTimeProvider{}, newID: uuid.NewString}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp, newID: uuid.NewString}
}

// GetByID returns the user with the given internal id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domainauth.User, error) {
	return r.getOne(ctx, "get user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByExternalID returns the user linked to an identity-platform subject.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*domainauth.User, error) {
	return r.getOne(ctx, "get user by external id", `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
}

// GetByEmail returns the user whose email matches case-insensitively.
// Emails are unique per user (users_email_key).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domainauth.User, error) {
	return r.getOne(ctx, "get user by email",
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
}

func (r *UserRepo) getOne(ctx context.Context, op, query string, arg string) (*domainauth.User, error) {
	if arg == "" {
		return nil, apperrors.NotFound("user not found")
	}
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.MapDBError(err))
	}
	return u, nil
}

// Upsert provisions or refreshes a user keyed on external_id. Concurrent first
// logins for the same subject converge on one row via the unique constraint.
func (r *UserRepo) Upsert(ctx context.Context, in ports.UpsertUserInput) (*domainauth.User, error) {
	if strings.TrimSpace(in.ExternalID) == "" {
		return nil, apperrors.ValidationField("external_id", "external id is required")
	}

	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("marshal permissions: %w", err)
	}
	profile := in.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	status := in.Status
	if status == "" {
		status = domainauth.UserStatusActive
	}

	now := r.timeProvider.Now().UTC()
	u, err := scanUser(r.DB.QueryRowContext(ctx, upsertUserSQL,
		r.newID(),
		in.ExternalID,
		in.Email,
		in.FirstName,
		in.LastName,
		string(in.Role),
		string(status),
		string(permsJSON),
		string(in.AccessLevel),
		string(profileJSON),
		now,
		in.UpdateRole,
		in.UpdatePermissions,
		in.UpdateAccessLevel,
		in.UpdateProfile,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", apperrors.MapDBError(err))
	}
	return u, nil
}

// Ping checks database connectivity.
func (r *UserRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domainauth.User, error) {
	var (
		u                      domainauth.User
		role, status, level    string
		permsJSON, profileJSON []byte
	)
	if err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName,
		&role, &status, &permsJSON, &level, &profileJSON,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domainauth.Role(role)
	u.Status = domainauth.UserStatus(status)
	u.AccessLevel = domainauth.AccessLevel(level)

	u.Permissions = []string{}
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &u.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if len(u.Profile) == 0 {
		u.Profile = nil
	}
	return &u, nil
}
