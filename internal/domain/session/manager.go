package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pet-marketplace/internal/domain/profiles"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/ports/auth"
	"pet-marketplace/internal/ports/backend"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
)

// ProfileStore es lo que el manager necesita de profiles.
type ProfileStore interface {
	Create(ctx context.Context, user backend.User, attrs profiles.SignUpAttrs) (profiles.Profile, error)
	Ensure(ctx context.Context, user backend.User) (profiles.Profile, error)
}

type tracked struct {
	session backend.Session
	timer   *time.Timer
}

// Manager guarda las sesiones abiertas por este proceso y las cierra solo
// cuando pasa su expires_at (por timer o al consultarlas).
type Manager struct {
	auth     backend.Auth
	profiles ProfileStore
	fallback auth.AuthVerifier
	log      logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	sessions  map[string]*tracked
	onSignOut []func(uid string)
	// afterFunc se reemplaza en tests para no depender de timers reales
	afterFunc func(d time.Duration, f func()) *time.Timer
}

type Option func(*Manager)

// WithFallbackVerifier valida tokens que este proceso no emitió (otro nodo, cliente externo).
func WithFallbackVerifier(v auth.AuthVerifier) Option {
	return func(m *Manager) { m.fallback = v }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func NewManager(a backend.Auth, p ProfileStore, opts ...Option) *Manager {
	m := &Manager{
		auth:      a,
		profiles:  p,
		log:       logger.Nop(),
		now:       time.Now,
		sessions:  make(map[string]*tracked),
		afterFunc: time.AfterFunc,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(map[string]any{"module": "session"})
	return m
}

// OnSignOut registra un hook que corre después de cada cierre de sesión (manual o por expiración).
func (m *Manager) OnSignOut(fn func(uid string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSignOut = append(m.onSignOut, fn)
}

type SignUpInput struct {
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required,min=6"`
	FullName string            `json:"full_name" validate:"required,max=120"`
	Phone    string            `json:"phone" validate:"omitempty,max=30"`
	UserType profiles.UserType `json:"user_type" validate:"omitempty,oneof=veterinarian seller consumer"`
}

// SignUp crea la identidad y su perfil. Si el perfil falla, el primer sign-in lo reintenta.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) (backend.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return backend.User{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}

	attrs := profiles.SignUpAttrs{FullName: in.FullName, Phone: in.Phone, UserType: in.UserType}
	u, err := m.auth.SignUp(ctx, in.Email, in.Password, map[string]any{
		"full_name": attrs.FullName,
		"phone":     attrs.Phone,
		"user_type": string(attrs.UserType),
	})
	if err != nil {
		return backend.User{}, err
	}

	if _, err := m.profiles.Create(ctx, u, attrs); err != nil {
		m.log.Warn("profile create on sign-up failed", map[string]any{"user_id": u.ID, "error": err})
	}
	return u, nil
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (m *Manager) SignIn(ctx context.Context, in Credentials) (backend.Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return backend.Session{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	sess, err := m.auth.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return backend.Session{}, err
	}
	m.open(ctx, sess)
	return sess, nil
}

// VerifyEmail confirma la cuenta con el token del correo y abre la sesión resultante.
func (m *Manager) VerifyEmail(ctx context.Context, tokenHash, kind string) (backend.Session, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return backend.Session{}, fmt.Errorf("%w: token_hash is required", ErrInvalidInput)
	}
	if kind == "" {
		kind = "email"
	}
	sess, err := m.auth.VerifyEmail(ctx, tokenHash, kind)
	if err != nil {
		return backend.Session{}, err
	}
	m.open(ctx, sess)
	return sess, nil
}

func (m *Manager) open(ctx context.Context, sess backend.Session) {
	if _, err := m.profiles.Ensure(ctx, sess.User); err != nil {
		m.log.Warn("ensure profile failed", map[string]any{"user_id": sess.User.ID, "error": err})
	}

	token := sess.AccessToken
	t := &tracked{session: sess}
	if d := sess.ExpiresAt.Sub(m.now()); d > 0 {
		t.timer = m.afterFunc(d, func() { m.expire(token) })
	}

	m.mu.Lock()
	if prev, ok := m.sessions[token]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	m.sessions[token] = t
	m.mu.Unlock()

	m.log.Info("session opened", map[string]any{"user_id": sess.User.ID, "expires_at": sess.ExpiresAt})
}

// SignOut cierra la sesión en el backend y localmente. El cierre local ocurre
// aunque el backend falle.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoSession
	}
	err := m.auth.SignOut(ctx, token)
	if err != nil {
		m.log.Warn("remote sign-out failed", map[string]any{"error": err})
	}
	if uid, ok := m.drop(token); ok {
		m.notify(uid)
	}
	return err
}

// Current devuelve la sesión del token. Si ya expiró, la cierra y devuelve ErrSessionExpired.
func (m *Manager) Current(ctx context.Context, token string) (backend.Session, error) {
	token = strings.TrimSpace(token)
	m.mu.Lock()
	t, ok := m.sessions[token]
	m.mu.Unlock()
	if !ok {
		return backend.Session{}, ErrNoSession
	}
	if t.session.Expired(m.now()) {
		m.forceSignOut(ctx, token)
		return backend.Session{}, ErrSessionExpired
	}
	return t.session, nil
}

// Verify implementa auth.AuthVerifier: sesiones propias primero, después el verificador de respaldo.
func (m *Manager) Verify(ctx context.Context, token string) (auth.Claims, error) {
	sess, err := m.Current(ctx, token)
	switch {
	case err == nil:
		return auth.Claims{
			UserID:    sess.User.ID,
			Email:     sess.User.Email,
			Role:      sess.User.MetadataString("user_type"),
			ExpiresAt: sess.ExpiresAt,
		}, nil
	case errors.Is(err, ErrNoSession) && m.fallback != nil:
		return m.fallback.Verify(ctx, token)
	default:
		return auth.Claims{}, err
	}
}

// Sweep cierra todas las sesiones vencidas y devuelve cuántas cerró.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	var expired []string
	m.mu.Lock()
	for token, t := range m.sessions {
		if t.session.Expired(now) {
			expired = append(expired, token)
		}
	}
	m.mu.Unlock()

	for _, token := range expired {
		m.forceSignOut(ctx, token)
	}
	return len(expired)
}

// Close detiene los timers pendientes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.sessions {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
}

func (m *Manager) expire(token string) {
	m.forceSignOut(context.Background(), token)
}

func (m *Manager) forceSignOut(ctx context.Context, token string) {
	uid, ok := m.drop(token)
	if !ok {
		return
	}
	if err := m.auth.SignOut(context.WithoutCancel(ctx), token); err != nil {
		m.log.Warn("remote sign-out on expiry failed", map[string]any{"user_id": uid, "error": err})
	}
	m.log.Info("session expired", map[string]any{"user_id": uid})
	m.notify(uid)
}

func (m *Manager) drop(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[token]
	if !ok {
		return "", false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(m.sessions, token)
	return t.session.User.ID, true
}

func (m *Manager) notify(uid string) {
	m.mu.Lock()
	hooks := append([]func(string){}, m.onSignOut...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(uid)
	}
}

func (m *Manager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
