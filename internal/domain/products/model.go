package products

import "time"

// @Enum food, toys, accessories, health, other
type Category string

const (
	CategoryFood        Category = "food"
	CategoryToys        Category = "toys"
	CategoryAccessories Category = "accessories"
	CategoryHealth      Category = "health"
	CategoryOther       Category = "other"
)

// @Enum available, unavailable
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

type SellerSummary struct {
	FullName     string  `json:"full_name"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
}

type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    Category  `json:"category"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Seller *SellerSummary `json:"seller,omitempty"`
}

type Filter struct {
	Category string  `json:"category,omitempty"`
	Search   string  `json:"search,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`
}
