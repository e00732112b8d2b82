package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/envelope"
	"github.com/hongminglow/tokenauth/internal/http/respond"
	"github.com/hongminglow/tokenauth/internal/models/dto"
	"github.com/hongminglow/tokenauth/internal/users"
)

// UserService is the auth layer behind the handlers.
type UserService interface {
	Register(ctx context.Context, username, password string) envelope.Envelope
	Login(ctx context.Context, username, password string) envelope.Envelope
	Authorize(ctx context.Context, token string) envelope.Envelope
	GetByID(ctx context.Context, userID int64) envelope.Envelope
}

// AuthHandler owns the register, login, authorize and user lookup endpoints.
type AuthHandler struct {
	users UserService
	log   logrus.FieldLogger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc UserService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: svc, log: log}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/authorize", h.handleAuthorize).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}", h.handleGetUser).Methods(http.MethodGet)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	env := h.users.Register(r.Context(), req.Username, req.Password)
	status := respond.StatusFor(env.E)
	if env.E == envelope.CodeNotFound {
		status = http.StatusConflict
	}
	respond.Envelope(w, h.log, status, env)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	env := h.users.Login(r.Context(), req.Username, req.Password)
	status := respond.StatusFor(env.E)
	if env.E == envelope.CodeNotFound {
		// Do not reveal which usernames exist.
		status = http.StatusUnauthorized
	}
	respond.Envelope(w, h.log, status, env)
}

func (h *AuthHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respond.Envelope(w, h.log, http.StatusUnauthorized, envelope.New(envelope.CodeNotFound, nil))
		return
	}
	env := h.users.Authorize(r.Context(), token)
	status := respond.StatusFor(env.E)
	if env.E == envelope.CodeNotFound {
		status = http.StatusUnauthorized
	}
	respond.Envelope(w, h.log, status, env)
}

func (h *AuthHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respond.Error(w, h.log, http.StatusBadRequest, "invalid user id")
		return
	}
	env := h.users.GetByID(r.Context(), id)
	respond.Envelope(w, h.log, respond.StatusFor(env.E), env)
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (dto.CredentialsRequest, bool) {
	var req dto.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, http.StatusBadRequest, "invalid JSON payload")
		return req, false
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validateCredentials(req.Username, req.Password); err != nil {
		respond.Error(w, h.log, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	if utf8.RuneCountInString(username) > users.MaxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", users.MaxUsernameLength)
	}
	if !utf8.ValidString(password) {
		return errors.New("password must be valid UTF-8")
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
