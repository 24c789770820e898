package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpILike Op = "ilike" // patrón con % como comodín, case-insensitive
	OpLte   Op = "lte"
	OpGte   Op = "gte"
	OpIn    Op = "in" // Value es []string
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(col string, v any) Filter      { return Filter{Column: col, Op: OpEq, Value: v} }
func Neq(col string, v any) Filter     { return Filter{Column: col, Op: OpNeq, Value: v} }
func ILike(col, pattern string) Filter { return Filter{Column: col, Op: OpILike, Value: pattern} }
func Lte(col string, v any) Filter     { return Filter{Column: col, Op: OpLte, Value: v} }
func Gte(col string, v any) Filter     { return Filter{Column: col, Op: OpGte, Value: v} }
func In(col string, values []string) Filter {
	return Filter{Column: col, Op: OpIn, Value: values}
}

// Contains arma el patrón "%s%" usado por las búsquedas de texto libre.
// Los comodines y separadores que escriba el usuario se descartan.
func Contains(col, text string) Filter {
	return ILike(col, "%"+CleanSearch(text)+"%")
}

var searchReplacer = strings.NewReplacer("%", "", "_", "", ",", " ", "(", " ", ")", " ", "*", "", "\\", "")

// CleanSearch normaliza un texto de búsqueda libre.
func CleanSearch(text string) string {
	return strings.Join(strings.Fields(searchReplacer.Replace(text)), " ")
}

type Order struct {
	Column string
	Desc   bool
}

// Embed es una relación "shallow": por cada fila se adjunta la fila de Table cuyo id == ForeignKey.
// Equivale a `alias:foreign_key(col1,col2)` en PostgREST.
type Embed struct {
	Alias      string
	Table      string
	ForeignKey string
	Columns    []string
}

type Query struct {
	Table   string
	Columns []string // vacío => todas
	Embeds  []Embed
	Filters []Filter // AND
	AnyOf   []Filter // OR (grupo único), combinado en AND con Filters
	Order   []Order
	Limit   int
}

// Decode convierte filas del gateway al tipo destino pasando por JSON,
// así los adapters pueden devolver map[string]any sin conocer los modelos.
func Decode(rows []Row, out any) error {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("backend: encode rows: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("backend: decode rows: %w", err)
	}
	return nil
}

// DecodeOne decodifica la primera fila; ErrNotFound si no hay filas.
func DecodeOne(rows []Row, out any) error {
	if len(rows) == 0 {
		return ErrNotFound
	}
	b, err := json.Marshal(rows[0])
	if err != nil {
		return fmt.Errorf("backend: encode row: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("backend: decode row: %w", err)
	}
	return nil
}

// Encode convierte un struct (con tags json) en Row.
func Encode(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("backend: encode value: %w", err)
	}
	var r Row
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("backend: decode value: %w", err)
	}
	return r, nil
}
