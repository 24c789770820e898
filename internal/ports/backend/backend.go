package backend

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("backend: not found")
	ErrConflict          = errors.New("backend: conflict")
	ErrUnauthorized      = errors.New("backend: unauthorized")
	ErrEmailNotConfirmed = errors.New("backend: email not confirmed")
)

// Row es una fila tal cual viaja por el gateway (JSON-like).
type Row map[string]any

// Tables expone las operaciones de tabla del backend.
// Cada llamada es atómica solo para su tabla; no hay transacciones multi-tabla.
type Tables interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	Update(ctx context.Context, table string, values Row, filters []Filter) ([]Row, error)
	Delete(ctx context.Context, table string, filters []Filter) error
	// Upsert inserta o actualiza por primary key (id).
	Upsert(ctx context.Context, table string, rows []Row) ([]Row, error)
}

type UploadOptions struct {
	ContentType string
	// Upsert reemplaza el objeto si ya existe; si es false y existe => ErrConflict.
	Upsert bool
}

// ObjectStorage es el storage de archivos por bucket.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	PublicURL(bucket, key string) string
	// Remove ignora keys inexistentes.
	Remove(ctx context.Context, bucket string, keys []string) error
}

type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// MetadataString lee un atributo string de user_metadata.
func (u User) MetadataString(key string) string {
	if u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired es true cuando el instante de expiración ya pasó (o no hay expiración válida).
func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// Auth es la identidad del backend.
type Auth interface {
	// SignUp crea la identidad; el backend dispara el email de verificación.
	SignUp(ctx context.Context, email, password string, attrs map[string]any) (User, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (User, error)
	VerifyEmail(ctx context.Context, tokenHash, kind string) (Session, error)
}

// Gateway agrupa los tres servicios del backend.
type Gateway struct {
	Tables  Tables
	Storage ObjectStorage
	Auth    Auth
}

type ctxKey string

const accessTokenKey ctxKey = "access_token"

// WithAccessToken guarda el token del usuario para que los adapters lo reenvíen (RLS).
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey, token)
}

func AccessToken(ctx context.Context) string {
	s, _ := ctx.Value(accessTokenKey).(string)
	return s
}
