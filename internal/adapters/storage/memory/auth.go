package memory

import (
	"context"
	"fmt"
	"strings"

	"pet-marketplace/internal/ports/backend"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func (s *Store) SignUp(ctx context.Context, email, password string, attrs map[string]any) (backend.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("signup", email, 0); err != nil {
		return backend.User{}, err
	}
	if _, exists := s.users[email]; exists {
		return backend.User{}, fmt.Errorf("%w: user already registered", backend.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return backend.User{}, fmt.Errorf("memory: hash password: %w", err)
	}

	meta := make(map[string]any, len(attrs))
	for k, v := range attrs {
		meta[k] = v
	}
	u := &memUser{
		user:         backend.User{ID: uuid.NewString(), Email: email, Metadata: meta},
		passwordHash: hash,
		confirmed:    s.AutoConfirm,
		verifyToken:  uuid.NewString(),
	}
	s.users[email] = u
	return u.user, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("signin", email, 0); err != nil {
		return backend.Session{}, err
	}
	u, ok := s.users[email]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return backend.Session{}, fmt.Errorf("%w: invalid login credentials", backend.ErrUnauthorized)
	}
	if !u.confirmed {
		return backend.Session{}, backend.ErrEmailNotConfirmed
	}
	return s.issueSession(u), nil
}

func (s *Store) SignOut(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("signout", "", 0); err != nil {
		return err
	}
	delete(s.sessions, accessToken)
	return nil
}

func (s *Store) GetUser(ctx context.Context, accessToken string) (backend.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("getuser", "", 0); err != nil {
		return backend.User{}, err
	}
	sess, ok := s.sessions[accessToken]
	if !ok || sess.Expired(s.now()) {
		return backend.User{}, backend.ErrUnauthorized
	}
	return sess.User, nil
}

// VerifyEmail confirma la cuenta con el token emitido en el registro (ver VerificationToken).
func (s *Store) VerifyEmail(ctx context.Context, tokenHash, kind string) (backend.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("verify", kind, 0); err != nil {
		return backend.Session{}, err
	}
	for _, u := range s.users {
		if tokenHash != "" && u.verifyToken == tokenHash {
			u.confirmed = true
			u.verifyToken = ""
			return s.issueSession(u), nil
		}
	}
	return backend.Session{}, fmt.Errorf("%w: invalid or expired token", backend.ErrUnauthorized)
}

// VerificationToken devuelve el token pendiente de un email (equivale al link del correo).
func (s *Store) VerificationToken(email string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]; ok {
		return u.verifyToken
	}
	return ""
}

// issueSession requiere lock tomado.
func (s *Store) issueSession(u *memUser) backend.Session {
	sess := backend.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    s.now().Add(s.sessionTTL),
		User:         u.user,
	}
	s.sessions[sess.AccessToken] = sess
	return sess
}
