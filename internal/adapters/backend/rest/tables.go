package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pet-marketplace/internal/platform/httpclient"
	"pet-marketplace/internal/ports/backend"
)

const tablesPath = "/rest/v1/"

// Tables habla PostgREST.
type Tables struct {
	c *Client
}

func (t *Tables) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	params := url.Values{}
	params.Set("select", selectParam(q))
	if err := addFilters(params, q.Filters); err != nil {
		return nil, err
	}
	if len(q.AnyOf) > 0 {
		parts := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			v, err := filterValue(f)
			if err != nil {
				return nil, err
			}
			parts = append(parts, f.Column+"."+v)
		}
		params.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []backend.Row
	err := t.c.do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    tablesPath + q.Table,
		Query:   params,
		Headers: t.c.headers(ctx, nil),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []backend.Row{}
	}
	return out, nil
}

func (t *Tables) Insert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	return t.write(ctx, http.MethodPost, table, nil, rows, "return=representation")
}

func (t *Tables) Upsert(ctx context.Context, table string, rows []backend.Row) ([]backend.Row, error) {
	return t.write(ctx, http.MethodPost, table, nil, rows, "resolution=merge-duplicates,return=representation")
}

func (t *Tables) Update(ctx context.Context, table string, values backend.Row, filters []backend.Filter) ([]backend.Row, error) {
	params := url.Values{}
	if err := addFilters(params, filters); err != nil {
		return nil, err
	}
	return t.write(ctx, http.MethodPatch, table, params, values, "return=representation")
}

func (t *Tables) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	if len(filters) == 0 {
		return errors.New("rest: delete requires filters")
	}
	params := url.Values{}
	if err := addFilters(params, filters); err != nil {
		return err
	}
	return t.c.do(ctx, httpclient.Request{
		Method:  http.MethodDelete,
		Path:    tablesPath + table,
		Query:   params,
		Headers: t.c.headers(ctx, nil),
	}, nil)
}

func (t *Tables) write(ctx context.Context, method, table string, params url.Values, body any, prefer string) ([]backend.Row, error) {
	var out []backend.Row
	err := t.c.do(ctx, httpclient.Request{
		Method:  method,
		Path:    tablesPath + table,
		Query:   params,
		Headers: t.c.headers(ctx, map[string]string{"Prefer": prefer}),
		JSON:    body,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []backend.Row{}
	}
	return out, nil
}

// selectParam arma `cols,alias:table!fk(cols)`.
func selectParam(q backend.Query) string {
	parts := []string{"*"}
	if len(q.Columns) > 0 {
		parts = append([]string{}, q.Columns...)
	}
	for _, e := range q.Embeds {
		cols := "*"
		if len(e.Columns) > 0 {
			cols = strings.Join(e.Columns, ",")
		}
		parts = append(parts, fmt.Sprintf("%s:%s!%s(%s)", e.Alias, e.Table, e.ForeignKey, cols))
	}
	return strings.Join(parts, ",")
}

func addFilters(params url.Values, filters []backend.Filter) error {
	for _, f := range filters {
		v, err := filterValue(f)
		if err != nil {
			return err
		}
		params.Add(f.Column, v)
	}
	return nil
}

// filterValue devuelve `op.valor` en sintaxis PostgREST.
func filterValue(f backend.Filter) (string, error) {
	switch f.Op {
	case backend.OpEq, backend.OpNeq, backend.OpLte, backend.OpGte:
		return string(f.Op) + "." + fmt.Sprint(f.Value), nil
	case backend.OpILike:
		pattern, _ := f.Value.(string)
		return "ilike." + strings.ReplaceAll(pattern, "%", "*"), nil
	case backend.OpIn:
		values, _ := f.Value.([]string)
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		return "in.(" + strings.Join(quoted, ",") + ")", nil
	}
	return "", fmt.Errorf("rest: unsupported operator %q", f.Op)
}
