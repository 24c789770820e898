package locations

import "context"

// Municipality tal como la entrega la fuente externa (sin ordenar).
type Municipality struct {
	ID   int
	Name string
	UF   string
}

// Provider lista todos los municipios del país.
type Provider interface {
	Municipalities(ctx context.Context) ([]Municipality, error)
}
