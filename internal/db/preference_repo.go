package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skyview/internal/types"
)

const preferenceSchema = `CREATE TABLE IF NOT EXISTS language_preferences (
	client_id  TEXT NOT NULL,
	pref_key   TEXT NOT NULL,
	language   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (client_id, pref_key)
)`

// PreferenceRepository stores one language preference per client and key in
// the language_preferences table.
type PreferenceRepository struct {
	db  DBTX
	key string
}

// NewPreferenceRepository creates a repository for the given preference key
// (e.g. "preferredLanguage").
func NewPreferenceRepository(db DBTX, key string) *PreferenceRepository {
	return &PreferenceRepository{db: db, key: key}
}

// EnsureSchema creates the table if it does not exist.
func (r *PreferenceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, preferenceSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create language_preferences table", err)
	}
	return nil
}

// Load returns the stored language for clientID. The boolean is false when
// nothing is stored. The value is returned as stored, without validation.
func (r *PreferenceRepository) Load(ctx context.Context, clientID string) (types.Language, bool, error) {
	var lang string
	err := r.db.QueryRow(ctx,
		`SELECT language FROM language_preferences WHERE client_id = $1 AND pref_key = $2`,
		clientID,
		r.key,
	).Scan(&lang)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to load language preference", err)
	}
	return types.Language(lang), true, nil
}

// Save upserts the language for clientID.
func (r *PreferenceRepository) Save(ctx context.Context, clientID string, lang types.Language) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO language_preferences (client_id, pref_key, language, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (client_id, pref_key)
		 DO UPDATE SET language = EXCLUDED.language, updated_at = NOW()`,
		clientID,
		r.key,
		string(lang),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save language preference", err)
	}
	return nil
}
