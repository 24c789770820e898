package favorites

import (
	"time"

	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/services"
)

// @Enum pet, service
type ItemType string

const (
	ItemPet     ItemType = "pet"
	ItemService ItemType = "service"
)

// Favorite es único por (user_id, item_id, item_type).
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	ItemType  ItemType  `json:"item_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Aggregate junta los favoritos con el detalle de cada ítem; los ítems que ya no existen se omiten.
type Aggregate struct {
	Favorites []Favorite         `json:"favorites"`
	Pets      []pets.Pet         `json:"pets"`
	Services  []services.Listing `json:"services"`
}

func emptyAggregate() Aggregate {
	return Aggregate{Favorites: []Favorite{}, Pets: []pets.Pet{}, Services: []services.Listing{}}
}
