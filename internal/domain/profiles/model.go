package profiles

import "time"

// UserType define el tipo de cuenta.
// @Enum veterinarian, seller, consumer
type UserType string

const (
	UserTypeVeterinarian UserType = "veterinarian"
	UserTypeSeller       UserType = "seller"
	UserTypeConsumer     UserType = "consumer"
)

// Profile es el perfil público de una identidad. Se crea en el sign-up y nunca se borra.
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	UserType     UserType  `json:"user_type,omitempty"`
	Rating       float64   `json:"rating"`
	TotalReviews int       `json:"total_reviews"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary es lo que se muestra junto a un anuncio.
type Summary struct {
	ID           string   `json:"id"`
	FullName     string   `json:"full_name"`
	AvatarURL    string   `json:"avatar_url,omitempty"`
	UserType     UserType `json:"user_type,omitempty"`
	Rating       float64  `json:"rating"`
	TotalReviews int      `json:"total_reviews"`
}

// Contact son los datos de contacto del dueño de un anuncio.
type Contact struct {
	FullName     string  `json:"full_name"`
	Phone        string  `json:"phone,omitempty"`
	Location     string  `json:"location,omitempty"`
	AvatarURL    string  `json:"avatar_url,omitempty"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
}
