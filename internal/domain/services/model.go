package services

import (
	"time"

	"pet-marketplace/internal/domain/profiles"
)

// Category de servicio.
// @Enum grooming, veterinary, training, boarding, foster, temporary, other
type Category string

const (
	CategoryGrooming   Category = "grooming"
	CategoryVeterinary Category = "veterinary"
	CategoryTraining   Category = "training"
	CategoryBoarding   Category = "boarding"
	CategoryFoster     Category = "foster"
	CategoryTemporary  Category = "temporary"
	CategoryOther      Category = "other"
)

// @Enum active, inactive
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type ProviderSummary struct {
	FullName     string  `json:"full_name"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
}

// Listing es un servicio ofrecido por un prestador.
type Listing struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     Category       `json:"category"`
	PriceFrom    float64        `json:"price_from"`
	PriceTo      float64        `json:"price_to"`
	Location     string         `json:"location"`
	ImageURL     string         `json:"image_url"`
	Status       Status         `json:"status"`
	Availability map[string]any `json:"availability,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Provider *ProviderSummary  `json:"provider,omitempty"`
	Contact  *profiles.Contact `json:"contact,omitempty"`
}

type Filter struct {
	Category string  `json:"category,omitempty"`
	Search   string  `json:"search,omitempty"`
	Location string  `json:"location,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`
}
