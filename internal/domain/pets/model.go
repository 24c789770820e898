package pets

import (
	"time"

	"pet-marketplace/internal/domain/profiles"
)

// Category define las categorías de anuncio.
// @Enum dogs, cats, birds, fish, rabbits, hamsters, other
type Category string

const (
	CategoryDogs     Category = "dogs"
	CategoryCats     Category = "cats"
	CategoryBirds    Category = "birds"
	CategoryFish     Category = "fish"
	CategoryRabbits  Category = "rabbits"
	CategoryHamsters Category = "hamsters"
	CategoryOther    Category = "other"
)

// Status es el ciclo de vida del anuncio.
// @Enum available, pending, adopted
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusAdopted   Status = "adopted"
)

// OwnerSummary son los datos del vendedor que se muestran en el listado.
type OwnerSummary struct {
	FullName     string  `json:"full_name"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
}

type Image struct {
	ID       string `json:"id,omitempty"`
	PetID    string `json:"pet_id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Vaccine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// petVaccine es una fila de pet_vaccines con el nombre de la vacuna embebido.
type petVaccine struct {
	PetID     string `json:"pet_id"`
	VaccineID string `json:"vaccine_id"`
	Vaccine   *struct {
		Name string `json:"name"`
	} `json:"vaccine"`
}

// Pet es un anuncio de mascota (venta o donación).
type Pet struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	Name          string    `json:"name"`
	Breed         string    `json:"breed"`
	Category      Category  `json:"category"`
	Age           string    `json:"age"`
	IsDonation    bool      `json:"is_donation"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"image_url"`
	Location      string    `json:"location"`
	Status        Status    `json:"status"`
	HealthChecked bool      `json:"health_checked"`
	Vaccinated    bool      `json:"vaccinated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Solo en el listado público.
	Owner *OwnerSummary `json:"owner,omitempty"`
	// Solo en el detalle.
	Contact *profiles.Contact `json:"contact,omitempty"`
	// Solo en "mis mascotas"; ahí siempre vienen como lista, aunque sea vacía.
	Images   []Image  `json:"images"`
	Vaccines []string `json:"vaccines"`
}

// Filter de la búsqueda pública. Vacío = sin restricción; category "all" equivale a vacío.
type Filter struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Location string `json:"location,omitempty"`
}
