package reviews

import "time"

type Reviewer struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Review es la calificación (1 a 5) que un usuario deja sobre otro perfil.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	ReviewedID string    `json:"reviewed_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`

	Reviewer *Reviewer `json:"reviewer,omitempty"`
}
