package pets

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNoImages        = errors.New("at least one image is required")
	ErrNotFound        = errors.New("pet not found")
	ErrForbidden       = errors.New("forbidden")
	ErrMissingRow      = errors.New("backend returned no pet row")
)

// PartialWriteError indica que una escritura de varios pasos falló a mitad de camino.
// Compensated es true si los pasos ya aplicados se pudieron deshacer.
type PartialWriteError struct {
	Step        string
	PetID       string
	Compensated bool
	Err         error
}

func (e *PartialWriteError) Error() string {
	state := "compensated"
	if !e.Compensated {
		state = "left partially applied"
	}
	return fmt.Sprintf("pet %s: step %s failed (%s): %v", e.PetID, e.Step, state, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Committed es true cuando quedaron cambios en el backend.
func (e *PartialWriteError) Committed() bool { return !e.Compensated }
