package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pet-marketplace/internal/ports/backend"

	"github.com/google/uuid"
)

// Call es el registro de una llamada al backend in-memory (lo usan los tests para contar requests).
type Call struct {
	Op     string // select, insert, update, delete, upsert, upload, remove, signup, signin, signout, getuser, verify
	Target string // tabla, bucket o email
	Rows   int
}

// Store implementa backend.Tables, backend.ObjectStorage y backend.Auth en memoria.
// Sirve para modo dev y tests; no persiste nada.
type Store struct {
	mu sync.RWMutex

	tables  map[string][]backend.Row
	uniques map[string][][]string
	objects map[string][]byte
	calls   []Call
	fail    map[string]error

	users      map[string]*memUser // por email
	sessions   map[string]backend.Session
	sessionTTL time.Duration

	// AutoConfirm confirma el email al registrarse (modo dev).
	AutoConfirm bool
	// PublicBaseURL prefija las URLs públicas de objetos.
	PublicBaseURL string

	now func() time.Time
}

type memUser struct {
	user         backend.User
	passwordHash []byte
	confirmed    bool
	verifyToken  string
}

func NewStore() *Store {
	return &Store{
		tables: make(map[string][]backend.Row),
		uniques: map[string][][]string{
			"favorites":    {{"user_id", "item_id", "item_type"}},
			"pet_vaccines": {{"pet_id", "vaccine_id"}},
		},
		objects:       make(map[string][]byte),
		fail:          make(map[string]error),
		users:         make(map[string]*memUser),
		sessions:      make(map[string]backend.Session),
		sessionTTL:    time.Hour,
		AutoConfirm:   true,
		PublicBaseURL: "http://localhost:8080",
		now:           time.Now,
	}
}

// SetClock reemplaza el reloj (tests).
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetSessionTTL cambia la duración de las sesiones emitidas.
func (s *Store) SetSessionTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTTL = d
}

// Fail hace que la próxima llamada op/target devuelva err (una sola vez).
func (s *Store) Fail(op, target string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op+":"+target] = err
}

// Seed carga filas sin registrar llamadas.
func (s *Store) Seed(table string, rows ...backend.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		n := normalizeRow(r)
		if _, ok := n["id"]; !ok {
			n["id"] = uuid.NewString()
		}
		if _, ok := n["created_at"]; !ok {
			n["created_at"] = s.now().UTC().Format(time.RFC3339Nano)
		}
		s.tables[table] = append(s.tables[table], n)
	}
}

// Rows devuelve una copia de la tabla completa.
func (s *Store) Rows(table string) []backend.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

func (s *Store) Object(bucket, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[bucket+"/"+key]
	return b, ok
}

func (s *Store) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls cuenta llamadas por op y target. target vacío => cualquier target.
func (s *Store) CountCalls(op, target string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op && (target == "" || c.Target == target) {
			n++
		}
	}
	return n
}

func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// record registra la llamada y devuelve el error inyectado si lo hay. Requiere lock tomado.
func (s *Store) record(op, target string, rows int) error {
	s.calls = append(s.calls, Call{Op: op, Target: target, Rows: rows})
	key := op + ":" + target
	if err, ok := s.fail[key]; ok {
		delete(s.fail, key)
		return err
	}
	return nil
}

// -------------------------
// Tables
// -------------------------

func (s *Store) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("select", q.Table, 0); err != nil {
		return nil, err
	}

	out := make([]backend.Row, 0)
	for _, r := range s.tables[q.Table] {
		if !matchAll(r, q.Filters) || !matchAny(r, q.AnyOf) {
			continue
		}
		out = append(out, copyRow(r))
	}

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	for i, r := range out {
		out[i] = s.project(r, q.Columns)
		for _, e := range q.Embeds {
			out[i][e.Alias] = s.embed(r, e)
		}
	}
	return out, nil
}

func (s *Store) embed(r backend.Row, e backend.Embed) any {
	fk := fmt.Sprint(r[e.ForeignKey])
	for _, parent := range s.tables[e.Table] {
		if fmt.Sprint(parent["id"]) == fk {
			return s.project(parent, e.Columns)
		}
	}
	return nil
}

func (s *Store) project(r backend.Row, cols []string) backend.Row {
	if len(cols) == 0 {
		return copyRow(r)
	}
	out := backend.Row{}
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func (s *Store) Insert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("insert", table, len(rows)); err != nil {
		return nil, err
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	prepared := make([]backend.Row, 0, len(rows))
	for _, r := range rows {
		n := normalizeRow(r)
		if _, ok := n["id"]; !ok {
			n["id"] = uuid.NewString()
		}
		if _, ok := n["created_at"]; !ok {
			n["created_at"] = now
		}
		if s.findByID(table, fmt.Sprint(n["id"])) >= 0 {
			return nil, fmt.Errorf("%w: duplicate id in %s", backend.ErrConflict, table)
		}
		if err := s.checkUnique(table, n, prepared); err != nil {
			return nil, err
		}
		prepared = append(prepared, n)
	}

	out := make([]backend.Row, 0, len(prepared))
	for _, n := range prepared {
		s.tables[table] = append(s.tables[table], n)
		out = append(out, copyRow(n))
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table string, values backend.Row, filters []backend.Filter) ([]backend.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("update", table, 0); err != nil {
		return nil, err
	}

	vals := normalizeRow(values)
	out := make([]backend.Row, 0)
	for i, r := range s.tables[table] {
		if !matchAll(r, filters) {
			continue
		}
		for k, v := range vals {
			r[k] = v
		}
		s.tables[table][i] = r
		out = append(out, copyRow(r))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("delete", table, 0); err != nil {
		return err
	}
	if len(filters) == 0 {
		return errors.New("memory: delete requires filters")
	}

	kept := s.tables[table][:0]
	for _, r := range s.tables[table] {
		if matchAll(r, filters) {
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	return nil
}

func (s *Store) Upsert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("upsert", table, len(rows)); err != nil {
		return nil, err
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	out := make([]backend.Row, 0, len(rows))
	for _, r := range rows {
		n := normalizeRow(r)
		id, ok := n["id"]
		if !ok {
			return nil, errors.New("memory: upsert requires id")
		}
		if i := s.findByID(table, fmt.Sprint(id)); i >= 0 {
			for k, v := range n {
				s.tables[table][i][k] = v
			}
			out = append(out, copyRow(s.tables[table][i]))
			continue
		}
		if _, ok := n["created_at"]; !ok {
			n["created_at"] = now
		}
		s.tables[table] = append(s.tables[table], n)
		out = append(out, copyRow(n))
	}
	return out, nil
}

func (s *Store) findByID(table, id string) int {
	for i, r := range s.tables[table] {
		if fmt.Sprint(r["id"]) == id {
			return i
		}
	}
	return -1
}

func (s *Store) checkUnique(table string, n backend.Row, pending []backend.Row) error {
	for _, cols := range s.uniques[table] {
		candidates := append(append([]backend.Row{}, s.tables[table]...), pending...)
		for _, r := range candidates {
			same := true
			for _, c := range cols {
				if fmt.Sprint(r[c]) != fmt.Sprint(n[c]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: unique (%s) in %s", backend.ErrConflict, strings.Join(cols, ","), table)
			}
		}
	}
	return nil
}

// -------------------------
// ObjectStorage
// -------------------------

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("upload", bucket, 1); err != nil {
		return err
	}
	k := bucket + "/" + key
	if _, exists := s.objects[k]; exists && !opts.Upsert {
		return fmt.Errorf("%w: object %s already exists", backend.ErrConflict, k)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[k] = cp
	return nil
}

func (s *Store) PublicURL(bucket, key string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + "/storage/v1/object/public/" + bucket + "/" + key
}

func (s *Store) Remove(ctx context.Context, bucket string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record("remove", bucket, len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.objects, bucket+"/"+k)
	}
	return nil
}

// -------------------------
// helpers
// -------------------------

// normalizeRow pasa la fila por JSON para que números, fechas y structs queden
// con los mismos tipos que devolvería un backend real.
func normalizeRow(r backend.Row) backend.Row {
	b, err := json.Marshal(r)
	if err != nil {
		return copyRow(r)
	}
	var out backend.Row
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return copyRow(r)
	}
	return out
}

func normalizeValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func copyRow(r backend.Row) backend.Row {
	out := make(backend.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
