package auth

import "time"

// Claims representa la identidad extraída del access token.
type Claims struct {
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time // cero si el verificador no la conoce
}
