package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users and their profiles. Lookups return (nil, nil)
// when no row exists; absence is a valid result, not an error.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, email, passwordHash string, role Role) (*User, error)
	UpsertProfile(ctx context.Context, userID string, name, phone *string, preferences map[string]any) (*Profile, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, role, created_at, updated_at`

// FindByEmail fetches a user by normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create inserts a new user. The unique constraint on email is the
// authoritative duplicate check: concurrent registrations with the same
// email resolve here, and the loser observes ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, email, passwordHash string, role Role) (*User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (email, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING `+userColumns, email, passwordHash, role)

	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("create user: no row returned")
	}
	return user, nil
}

// UpsertProfile inserts the profile or overwrites all three fields,
// advancing updated_at. Calling twice with identical arguments yields the
// same stored state.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, userID string, name, phone *string, preferences map[string]any) (*Profile, error) {
	prefs, err := marshalPreferences(preferences)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `INSERT INTO profiles (user_id, name, phone, preferences)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE
            SET name = EXCLUDED.name,
                phone = EXCLUDED.phone,
                preferences = EXCLUDED.preferences,
                updated_at = NOW()
        RETURNING user_id, name, phone, preferences, created_at, updated_at`,
		userID, name, phone, prefs)

	profile, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("upsert profile: no row returned")
	}
	return profile, nil
}

// GetProfile fetches the profile attached to a user, if any.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT user_id, name, phone, preferences, created_at, updated_at
        FROM profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		profile Profile
		prefs   []byte
	)
	if err := row.Scan(&profile.UserID, &profile.Name, &profile.Phone, &prefs, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &profile.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	profile.CreatedAt = profile.CreatedAt.UTC()
	profile.UpdatedAt = profile.UpdatedAt.UTC()
	return &profile, nil
}

func marshalPreferences(preferences map[string]any) ([]byte, error) {
	if preferences == nil {
		return nil, nil
	}
	out, err := json.Marshal(preferences)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return out, nil
}
