package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skyview/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- PreferenceRepository Tests ---

func TestPreferenceRepository_Load_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "tr"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"client-1", "preferredLanguage"}).
		Return(row)

	lang, ok, err := repo.Load(context.Background(), "client-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.LanguageTurkish, lang)
	db.AssertExpectations(t)
}

func TestPreferenceRepository_Load_ReturnsUnvalidatedValue(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "klingon"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	lang, ok, err := repo.Load(context.Background(), "client-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.Language("klingon"), lang)
}

func TestPreferenceRepository_Load_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	lang, ok, err := repo.Load(context.Background(), "client-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, lang)
}

func TestPreferenceRepository_Load_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, _, err := repo.Load(context.Background(), "client-1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPreferenceRepository_Save_Upserts(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return assert.Contains(t, sql, "ON CONFLICT (client_id, pref_key)")
	}), []any{"client-1", "preferredLanguage", "tr"}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Save(context.Background(), "client-1", types.LanguageTurkish)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPreferenceRepository_Save_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("read-only transaction"))

	err := repo.Save(context.Background(), "client-1", types.LanguageEnglish)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPreferenceRepository_EnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db, "preferredLanguage")

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS language_preferences")
	}), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	db.AssertExpectations(t)
}

// --- HealthProbe Tests ---

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthProbe(t *testing.T) {
	probe := NewHealthProbe(stubPinger{})
	assert.Equal(t, "database", probe.Name())
	assert.NoError(t, probe.Check(context.Background()))

	down := NewHealthProbe(stubPinger{err: errors.New("refused")})
	assert.EqualError(t, down.Check(context.Background()), "refused")
}
