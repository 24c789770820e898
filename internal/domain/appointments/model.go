package appointments

import "time"

// @Enum scheduled, completed, cancelled
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Role es el lado desde el que se miran las citas.
type Role string

const (
	RoleVeterinarian Role = "veterinarian"
	RoleConsumer     Role = "consumer"
)

type PetSummary struct {
	Name  string `json:"name"`
	Breed string `json:"breed"`
}

// Counterpart es el veterinario para el dueño y el dueño para el veterinario.
type Counterpart struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type Appointment struct {
	ID             string    `json:"id"`
	VeterinarianID string    `json:"veterinarian_id"`
	OwnerID        string    `json:"owner_id"`
	PetID          string    `json:"pet_id"`
	Date           string    `json:"date"` // YYYY-MM-DD
	Time           string    `json:"time"` // HH:MM
	Status         Status    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Pet          *PetSummary  `json:"pet,omitempty"`
	Veterinarian *Counterpart `json:"veterinarian,omitempty"`
	Owner        *Counterpart `json:"owner,omitempty"`
}
