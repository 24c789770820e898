package querycache

import (
	"encoding/json"
	"fmt"
)

// Key identifica una query lógica: entidad + parámetros.
// Params es JSON canónico, así dos keys con los mismos valores son iguales (==).
type Key struct {
	Entity string
	Params string
}

// NewKey arma la key con los parámetros en orden. Los maps se serializan con
// claves ordenadas (encoding/json), los structs en orden de campos.
func NewKey(entity string, params ...any) Key {
	if params == nil {
		params = []any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		// parámetros no serializables: caemos a %v, sigue siendo determinístico para tipos simples
		return Key{Entity: entity, Params: fmt.Sprintf("%v", params)}
	}
	return Key{Entity: entity, Params: string(b)}
}

func (k Key) String() string {
	return k.Entity + ":" + k.Params
}

// Match selecciona entries a invalidar: toda una entidad o una key exacta.
type Match struct {
	Entity string
	key    *Key
}

// Entity matchea todas las keys de la entidad, cualquiera sea el parámetro.
func Entity(name string) Match {
	return Match{Entity: name}
}

// Exact matchea una sola key.
func Exact(k Key) Match {
	return Match{Entity: k.Entity, key: &k}
}

func (m Match) matches(k Key) bool {
	if m.key != nil {
		return *m.key == k
	}
	return m.Entity == k.Entity
}
