// Package users implements registration, login and bearer token
// authorization on top of the generic SQL bridge.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/auth"
	"github.com/hongminglow/tokenauth/internal/envelope"
	"github.com/hongminglow/tokenauth/internal/storage/sqlbridge"
)

const (
	// DefaultTokenTTL is how long a token stays valid after login.
	DefaultTokenTTL = time.Hour
	// DefaultTokenLength is the length of tokens issued on login.
	DefaultTokenLength = 16
	// MaxUsernameLength is the username column width, in characters.
	MaxUsernameLength = 64

	placeholderTokenLength = 8
)

// Store is the subset of the SQL bridge the service depends on.
type Store interface {
	Dialect() sqlbridge.Dialect
	TableExists(ctx context.Context, name string) bool
	CreateTable(ctx context.Context, ddl string, indexDDL ...string) error
	QueryOne(ctx context.Context, query string, params ...sqlbridge.Param) (*sqlbridge.Document, error)
	QueryExists(ctx context.Context, query string, params ...sqlbridge.Param) (bool, error)
	Insert(ctx context.Context, query string, params ...sqlbridge.Param) (sql.NullInt64, error)
	Update(ctx context.Context, query string, params ...sqlbridge.Param) (int64, error)
}

var _ Store = (*sqlbridge.Bridge)(nil)

// Service owns the user table and the token lifecycle.
type Service struct {
	store  Store
	table  string
	q      queries
	hasher auth.PasswordHasher
	tokens auth.TokenGenerator
	ttl    time.Duration
	now    func() time.Time
	log    logrus.FieldLogger
}

// Option customises a Service.
type Option func(*Service)

// WithHasher overrides the bcrypt password hasher.
func WithHasher(h auth.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithTokens overrides the random token generator.
func WithTokens(g auth.TokenGenerator) Option {
	return func(s *Service) { s.tokens = g }
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger internal faults are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a service storing users in table.
func NewService(store Store, table string, opts ...Option) (*Service, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Service{
		store:  store,
		table:  table,
		q:      newQueries(table),
		hasher: auth.NewBcryptHasher(0),
		tokens: auth.NewRandomTokens(DefaultTokenLength),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
		log:    discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureSchema creates the user table and its indexes when the table is missing.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.store.TableExists(ctx, s.table) {
		return nil
	}
	ddl := createTableSQL(s.table, s.store.Dialect().AutoIncrementKey())
	if err := s.store.CreateTable(ctx, ddl, indexSQL(s.table)...); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	s.log.WithField("table", s.table).Info("created user table")
	return nil
}

// Register creates a user and returns it with a usable token.
func (s *Service) Register(ctx context.Context, username, password string) envelope.Envelope {
	doc, err := s.register(ctx, username, password)
	return s.respond("register", doc, err)
}

// Login checks credentials and rotates the user's token.
func (s *Service) Login(ctx context.Context, username, password string) envelope.Envelope {
	doc, err := s.login(ctx, username, password)
	return s.respond("login", doc, err)
}

// Authorize resolves a bearer token to its user. An expired token still
// returns the user document alongside CodeTokenExpired.
func (s *Service) Authorize(ctx context.Context, token string) envelope.Envelope {
	doc, err := s.authorize(ctx, token)
	return s.respond("authorize", doc, err)
}

// GetByID returns the user with the given id.
func (s *Service) GetByID(ctx context.Context, userID int64) envelope.Envelope {
	doc, err := s.findOne(ctx, s.q.byID, sqlbridge.Int(userID))
	return s.respond("get_by_id", strip(doc), err)
}

func (s *Service) register(ctx context.Context, username, password string) (*sqlbridge.Document, error) {
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, ErrInvalidUsername
	}
	exists, err := s.store.QueryExists(ctx, s.q.exists, sqlbridge.Text(username))
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	placeholder, err := auth.RandomString(placeholderTokenLength)
	if err != nil {
		return nil, fmt.Errorf("placeholder token: %w", err)
	}

	// The initial token expires the moment it is issued.
	key, err := s.store.Insert(ctx, s.q.insert,
		sqlbridge.Text(username),
		sqlbridge.Text(hash),
		sqlbridge.Text(placeholder),
		sqlbridge.Timestamp(s.now()),
	)
	if err != nil {
		if errors.Is(err, sqlbridge.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if !key.Valid {
		return nil, errors.New("insert user: no generated key")
	}

	doc, err := s.findOne(ctx, s.q.byID, sqlbridge.Int(key.Int64))
	if err != nil {
		// A missing row here is a store fault, not a caller-visible not-found.
		return nil, fmt.Errorf("load user %d after insert: %v", key.Int64, err)
	}
	return s.refreshToken(ctx, doc)
}

func (s *Service) login(ctx context.Context, username, password string) (*sqlbridge.Document, error) {
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, ErrNotFound
	}
	doc, err := s.findOne(ctx, s.q.byUsername, sqlbridge.Text(username))
	if err != nil {
		return nil, err
	}
	stored, _ := doc.Get(colPassword)
	if !s.hasher.Verify(stored, password) {
		return nil, ErrInvalidCredentials
	}
	return s.refreshToken(ctx, doc)
}

func (s *Service) authorize(ctx context.Context, token string) (*sqlbridge.Document, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	doc, err := s.findOne(ctx, s.q.byToken, sqlbridge.Text(token))
	if err != nil {
		return nil, err
	}
	expiresAt, err := doc.Int(colExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("read token expiry: %w", err)
	}
	if expiresAt <= s.now().UnixMilli() {
		return strip(doc), ErrTokenExpired
	}
	return strip(doc), nil
}

// refreshToken issues a new token for the user in doc, persists it and
// returns the password-stripped document carrying the new token and expiry.
func (s *Service) refreshToken(ctx context.Context, doc *sqlbridge.Document) (*sqlbridge.Document, error) {
	userID, err := doc.Int(colID)
	if err != nil {
		return nil, fmt.Errorf("read user id: %w", err)
	}
	expiresAt := s.now().Add(s.ttl)
	token, err := s.tokens.Issue(strconv.FormatInt(userID, 10), expiresAt)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	n, err := s.store.Update(ctx, s.q.refreshToken,
		sqlbridge.Text(token),
		sqlbridge.Timestamp(expiresAt),
		sqlbridge.Int(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("store token: user %d no longer exists", userID)
	}

	out := strip(doc)
	out.Set(colToken, token)
	out.Set(colExpiresAt, strconv.FormatInt(expiresAt.UnixMilli(), 10))
	return out, nil
}

func (s *Service) findOne(ctx context.Context, query string, params ...sqlbridge.Param) (*sqlbridge.Document, error) {
	doc, err := s.store.QueryOne(ctx, query, params...)
	if err != nil {
		if errors.Is(err, sqlbridge.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) respond(op string, doc *sqlbridge.Document, err error) envelope.Envelope {
	code := codeFor(err)
	switch code {
	case envelope.CodeSuccess, envelope.CodeTokenExpired:
		return envelope.New(code, doc)
	case envelope.CodeInternal:
		s.log.WithFields(logrus.Fields{"op": op, "table": s.table}).WithError(err).Error("auth operation failed")
	}
	return envelope.New(code, nil)
}

// strip returns a copy of doc without the password hash.
func strip(doc *sqlbridge.Document) *sqlbridge.Document {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	out.Delete(colPassword)
	return out
}
