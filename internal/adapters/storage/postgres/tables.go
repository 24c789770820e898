package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pet-marketplace/internal/ports/backend"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Tables implementa backend.Tables directo contra Postgres.
// No aplica RLS: los filtros de dueño los pone la capa de dominio.
type Tables struct {
	db *sql.DB
}

func NewTables(db *sql.DB) *Tables {
	return &Tables{db: db}
}

func (t *Tables) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	cols := q.Columns
	if len(cols) > 0 {
		for _, e := range q.Embeds {
			if !contains(cols, e.ForeignKey) {
				cols = append(append([]string{}, cols...), e.ForeignKey)
			}
		}
	}

	b := &builder{}
	sel, err := b.columns(cols)
	if err != nil {
		return nil, err
	}
	table, err := ident(q.Table)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + sel + " FROM " + table)

	where, err := b.where(q.Filters, q.AnyOf)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			c, err := ident(o.Column)
			if err != nil {
				return nil, err
			}
			if o.Desc {
				c += " DESC"
			}
			parts = append(parts, c)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}

	rows, err := t.query(ctx, sb.String(), b.args...)
	if err != nil {
		return nil, err
	}

	for _, e := range q.Embeds {
		if err := t.attach(ctx, rows, e); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// attach resuelve un embed con un único SELECT ... WHERE id IN (...).
func (t *Tables) attach(ctx context.Context, rows []backend.Row, e backend.Embed) error {
	ids := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, r := range rows {
		v := r[e.ForeignKey]
		if v == nil {
			continue
		}
		id := fmt.Sprint(v)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	parents := map[string]backend.Row{}
	if len(ids) > 0 {
		cols := e.Columns
		if len(cols) > 0 && !contains(cols, "id") {
			cols = append([]string{"id"}, cols...)
		}
		found, err := t.Select(ctx, backend.Query{
			Table:   e.Table,
			Columns: cols,
			Filters: []backend.Filter{backend.In("id", ids)},
		})
		if err != nil {
			return err
		}
		for _, p := range found {
			id := fmt.Sprint(p["id"])
			if len(e.Columns) > 0 && !contains(e.Columns, "id") {
				delete(p, "id")
			}
			parents[id] = p
		}
	}

	for _, r := range rows {
		if p, ok := parents[fmt.Sprint(r[e.ForeignKey])]; ok && r[e.ForeignKey] != nil {
			r[e.Alias] = p
		} else {
			r[e.Alias] = nil
		}
	}
	return nil
}

func (t *Tables) Insert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	return t.insert(ctx, table, rows, false)
}

// Upsert resuelve conflicto por id (primary key).
func (t *Tables) Upsert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	for _, r := range rows {
		if _, ok := r["id"]; !ok {
			return nil, errors.New("postgres: upsert requires id")
		}
	}
	return t.insert(ctx, table, rows, true)
}

func (t *Tables) insert(ctx context.Context, table string, rows []backend.Row, upsert bool) ([]backend.Row, error) {
	if len(rows) == 0 {
		return []backend.Row{}, nil
	}
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}

	cols := unionKeys(rows)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if quoted[i], err = ident(c); err != nil {
			return nil, err
		}
	}

	b := &builder{}
	tuples := make([]string, 0, len(rows))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			v, ok := r[c]
			if !ok {
				vals[i] = "DEFAULT"
				continue
			}
			vals[i] = b.arg(v)
		}
		tuples = append(tuples, "("+strings.Join(vals, ", ")+")")
	}

	stmt := "INSERT INTO " + tbl + " (" + strings.Join(quoted, ", ") + ") VALUES " + strings.Join(tuples, ", ")
	if upsert {
		sets := make([]string, 0, len(cols))
		for i, c := range cols {
			if c == "id" {
				continue
			}
			sets = append(sets, quoted[i]+" = EXCLUDED."+quoted[i])
		}
		if len(sets) == 0 {
			stmt += ` ON CONFLICT ("id") DO NOTHING`
		} else {
			stmt += ` ON CONFLICT ("id") DO UPDATE SET ` + strings.Join(sets, ", ")
		}
	}
	stmt += " RETURNING *"

	return t.query(ctx, stmt, b.args...)
}

func (t *Tables) Update(ctx context.Context, table string, values backend.Row, filters []backend.Filter) ([]backend.Row, error) {
	if len(values) == 0 {
		return nil, errors.New("postgres: update without values")
	}
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}

	b := &builder{}
	keys := sortedKeys(values)
	sets := make([]string, 0, len(keys))
	for _, k := range keys {
		c, err := ident(k)
		if err != nil {
			return nil, err
		}
		sets = append(sets, c+" = "+b.arg(values[k]))
	}

	where, err := b.where(filters, nil)
	if err != nil {
		return nil, err
	}
	return t.query(ctx, "UPDATE "+tbl+" SET "+strings.Join(sets, ", ")+where+" RETURNING *", b.args...)
}

func (t *Tables) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	if len(filters) == 0 {
		return errors.New("postgres: delete requires filters")
	}
	tbl, err := ident(table)
	if err != nil {
		return err
	}

	b := &builder{}
	where, err := b.where(filters, nil)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, "DELETE FROM "+tbl+where, b.args...); err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *Tables) query(ctx context.Context, stmt string, args ...any) ([]backend.Row, error) {
	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]backend.Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(backend.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
				continue
			}
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", backend.ErrConflict, pgErr.Message)
	}
	return err
}

// -------------------------
// SQL builder
// -------------------------

type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	switch v.(type) {
	case map[string]any, []any, backend.Row:
		if raw, err := json.Marshal(v); err == nil {
			v = string(raw)
		}
	}
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) columns(cols []string) (string, error) {
	if len(cols) == 0 {
		return "*", nil
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		q, err := ident(c)
		if err != nil {
			return "", err
		}
		parts[i] = q
	}
	return strings.Join(parts, ", "), nil
}

func (b *builder) where(all, anyOf []backend.Filter) (string, error) {
	parts := make([]string, 0, len(all)+1)
	for _, f := range all {
		cond, err := b.cond(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	if len(anyOf) > 0 {
		ors := make([]string, 0, len(anyOf))
		for _, f := range anyOf {
			cond, err := b.cond(f)
			if err != nil {
				return "", err
			}
			ors = append(ors, cond)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *builder) cond(f backend.Filter) (string, error) {
	col, err := ident(f.Column)
	if err != nil {
		return "", err
	}
	switch f.Op {
	case backend.OpEq:
		return col + " = " + b.arg(f.Value), nil
	case backend.OpNeq:
		return col + " <> " + b.arg(f.Value), nil
	case backend.OpILike:
		return col + " ILIKE " + b.arg(f.Value), nil
	case backend.OpLte:
		return col + " <= " + b.arg(f.Value), nil
	case backend.OpGte:
		return col + " >= " + b.arg(f.Value), nil
	case backend.OpIn:
		values, _ := f.Value.([]string)
		if len(values) == 0 {
			return "FALSE", nil
		}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = b.arg(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")", nil
	}
	return "", fmt.Errorf("postgres: unsupported operator %q", f.Op)
}

func ident(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("postgres: invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func unionKeys(rows []backend.Row) []string {
	set := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(r backend.Row) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
