package bookings

import "time"

// @Enum pending, confirmed, completed, cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type ServiceSummary struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Counterpart es el otro lado de la reserva: el prestador para el cliente y viceversa.
type Counterpart struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type Booking struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	CustomerID  string    `json:"customer_id"`
	ProviderID  string    `json:"provider_id"`
	BookingDate string    `json:"booking_date"` // YYYY-MM-DD
	StartTime   string    `json:"start_time"`   // HH:MM
	EndTime     string    `json:"end_time"`
	TotalPrice  float64   `json:"total_price"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Service  *ServiceSummary `json:"service,omitempty"`
	Provider *Counterpart    `json:"provider,omitempty"`
	Customer *Counterpart    `json:"customer,omitempty"`
}
