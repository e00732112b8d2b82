package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/tokenauth/internal/envelope"
	"github.com/hongminglow/tokenauth/internal/storage/sqlbridge"
)

// fakeStore scripts bridge responses for paths a real database cannot easily produce.
type fakeStore struct {
	tableExists bool
	created     []string

	existsErr error
	exists    bool
	insertKey sql.NullInt64
	insertErr error
	inserted  []sqlbridge.Param
	queryDoc  *sqlbridge.Document
	queryErr  error
	updated   int64
	updateErr error
	createErr error
}

func (f *fakeStore) Dialect() sqlbridge.Dialect {
	d, _ := sqlbridge.DialectFor("sqlite3")
	return d
}

func (f *fakeStore) TableExists(context.Context, string) bool { return f.tableExists }

func (f *fakeStore) CreateTable(_ context.Context, ddl string, indexDDL ...string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(append(f.created, ddl), indexDDL...)
	return nil
}

func (f *fakeStore) QueryOne(context.Context, string, ...sqlbridge.Param) (*sqlbridge.Document, error) {
	return f.queryDoc, f.queryErr
}

func (f *fakeStore) QueryExists(context.Context, string, ...sqlbridge.Param) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) Insert(_ context.Context, _ string, params ...sqlbridge.Param) (sql.NullInt64, error) {
	f.inserted = params
	return f.insertKey, f.insertErr
}

func (f *fakeStore) Update(context.Context, string, ...sqlbridge.Param) (int64, error) {
	return f.updated, f.updateErr
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(h, p string) bool       { return h == "h:"+p }

func newFaultService(t *testing.T, store *fakeStore) (*Service, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(store, "users",
		WithHasher(plainHasher{}),
		WithClock(func() time.Time { return now }),
		WithLogger(logger),
	)
	require.NoError(t, err)
	return svc, hook
}

func userDoc(id string) *sqlbridge.Document {
	d := sqlbridge.NewDocument()
	d.Set("user_id", id)
	d.Set("username", "alice")
	d.Set("password_hash", "h:pw")
	d.Set("token", "abcdefgh")
	d.Set("token_expires_at", "0")
	return d
}

func TestRegister_InsertsExpiredPlaceholder(t *testing.T) {
	store := &fakeStore{
		insertKey: sql.NullInt64{Int64: 1, Valid: true},
		queryDoc:  userDoc("1"),
		updated:   1,
	}
	svc, _ := newFaultService(t, store)

	env := svc.Register(context.Background(), "alice", "pw")
	require.Equal(t, envelope.CodeSuccess, env.E)

	require.Len(t, store.inserted, 4)
	assert.Equal(t, "alice", store.inserted[0].Value())
	assert.Equal(t, "h:pw", store.inserted[1].Value())
	placeholder, _ := store.inserted[2].Value().(string)
	assert.Len(t, placeholder, placeholderTokenLength)
	assert.Equal(t, sqlbridge.KindTimestamp, store.inserted[3].Kind())
	assert.Equal(t, svc.now().UnixMilli(), store.inserted[3].Value())
}

func TestRegister_InsertConflictIsTakenUsername(t *testing.T) {
	store := &fakeStore{insertErr: fmt.Errorf("insert: %w", sqlbridge.ErrConflict)}
	svc, hook := newFaultService(t, store)

	env := svc.Register(context.Background(), "alice", "pw")
	assert.Equal(t, envelope.CodeNotFound, env.E)
	assert.Empty(t, hook.AllEntries(), "a lost race is not an internal fault")
}

func TestServiceFaultsAreInternal(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		store *fakeStore
		call  func(*Service) envelope.Envelope
	}{
		{
			name:  "exists check fails",
			store: &fakeStore{existsErr: boom},
			call:  func(s *Service) envelope.Envelope { return s.Register(context.Background(), "alice", "pw") },
		},
		{
			name:  "insert fails",
			store: &fakeStore{insertErr: boom},
			call:  func(s *Service) envelope.Envelope { return s.Register(context.Background(), "alice", "pw") },
		},
		{
			name:  "no generated key",
			store: &fakeStore{},
			call:  func(s *Service) envelope.Envelope { return s.Register(context.Background(), "alice", "pw") },
		},
		{
			name: "row vanishes after insert",
			store: &fakeStore{
				insertKey: sql.NullInt64{Int64: 1, Valid: true},
				queryErr:  sqlbridge.ErrNoRows,
			},
			call: func(s *Service) envelope.Envelope { return s.Register(context.Background(), "alice", "pw") },
		},
		{
			name:  "token update touches no row",
			store: &fakeStore{queryDoc: userDoc("1"), updated: 0},
			call:  func(s *Service) envelope.Envelope { return s.Login(context.Background(), "alice", "pw") },
		},
		{
			name:  "token update fails",
			store: &fakeStore{queryDoc: userDoc("1"), updateErr: boom},
			call:  func(s *Service) envelope.Envelope { return s.Login(context.Background(), "alice", "pw") },
		},
		{
			name:  "lookup fails",
			store: &fakeStore{queryErr: boom},
			call:  func(s *Service) envelope.Envelope { return s.Authorize(context.Background(), "abcdefgh") },
		},
		{
			name:  "corrupt expiry",
			store: &fakeStore{queryDoc: func() *sqlbridge.Document { d := userDoc("1"); d.Set("token_expires_at", "soon"); return d }()},
			call:  func(s *Service) envelope.Envelope { return s.Authorize(context.Background(), "abcdefgh") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, hook := newFaultService(t, tt.store)

			env := tt.call(svc)
			assert.Equal(t, envelope.CodeInternal, env.E)
			assert.Nil(t, env.D)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, "users", entry.Data["table"])
		})
	}
}

func TestEnsureSchema(t *testing.T) {
	t.Run("creates missing table with indexes", func(t *testing.T) {
		store := &fakeStore{}
		svc, _ := newFaultService(t, store)

		require.NoError(t, svc.EnsureSchema(context.Background()))
		require.Len(t, store.created, 3)
		assert.Contains(t, store.created[0], "INTEGER PRIMARY KEY AUTOINCREMENT")
		assert.Contains(t, store.created[1], "users_username_uindex")
		assert.Contains(t, store.created[2], "users_token_index")
	})

	t.Run("leaves existing table alone", func(t *testing.T) {
		store := &fakeStore{tableExists: true}
		svc, _ := newFaultService(t, store)

		require.NoError(t, svc.EnsureSchema(context.Background()))
		assert.Empty(t, store.created)
	})

	t.Run("reports create failure", func(t *testing.T) {
		store := &fakeStore{createErr: errors.New("permission denied")}
		svc, _ := newFaultService(t, store)

		err := svc.EnsureSchema(context.Background())
		assert.ErrorContains(t, err, "create users table")
	})
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, envelope.CodeSuccess, codeFor(nil))
	assert.Equal(t, envelope.CodeNotFound, codeFor(ErrUsernameTaken))
	assert.Equal(t, envelope.CodeNotFound, codeFor(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, envelope.CodeInvalidCredentials, codeFor(ErrInvalidCredentials))
	assert.Equal(t, envelope.CodeInvalidCredentials, codeFor(ErrInvalidUsername))
	assert.Equal(t, envelope.CodeTokenExpired, codeFor(ErrTokenExpired))
	assert.Equal(t, envelope.CodeInternal, codeFor(errors.New("boom")))
}
