package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/prolink/prolink-go"
)

// dataAPI is the PostgREST surface. Filters compile to the service's
// column=eq.value query grammar; OR groups use the or=(...) operator.
type dataAPI struct {
	client *Client
}

var _ prolink.DataAPI = (*dataAPI)(nil)

func (d *dataAPI) SelectOne(ctx context.Context, table string, match map[string]any, dest any) error {
	params := url.Values{}
	applyMatch(params, match)

	// The single-object representation turns "zero rows" into a 406,
	// which maps onto the not-found taxonomy.
	return d.do(ctx, http.MethodGet, table, params, nil, dest, map[string]string{
		"Accept": "application/vnd.pgrst.object+json",
	})
}

func (d *dataAPI) Select(ctx context.Context, table string, q prolink.Query, dest any) error {
	params := url.Values{}
	applyMatch(params, q.Match)

	if len(q.AnyOf) > 0 {
		params.Set("or", orGroups(q.AnyOf))
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}

	return d.do(ctx, http.MethodGet, table, params, nil, dest, nil)
}

func (d *dataAPI) Insert(ctx context.Context, table string, record, dest any) error {
	headers := map[string]string{}
	if dest != nil {
		headers["Prefer"] = "return=representation"
		headers["Accept"] = "application/vnd.pgrst.object+json"
	}
	return d.do(ctx, http.MethodPost, table, nil, record, dest, headers)
}

func (d *dataAPI) Update(ctx context.Context, table string, match map[string]any, fields map[string]any) error {
	params := url.Values{}
	applyMatch(params, match)
	return d.do(ctx, http.MethodPatch, table, params, fields, nil, nil)
}

func (d *dataAPI) Delete(ctx context.Context, table string, match map[string]any) error {
	params := url.Values{}
	applyMatch(params, match)
	return d.do(ctx, http.MethodDelete, table, params, nil, nil, nil)
}

func (d *dataAPI) do(ctx context.Context, method, table string, params url.Values, payload, dest any, headers map[string]string) error {
	endpoint := d.client.config.baseURL() + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", d.client.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+d.client.accessToken())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := d.client.config.httpClient().Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return wrapTransport(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return mapRestError(res.StatusCode, raw)
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return wrapUnavailable(res.StatusCode, "malformed response body")
		}
	}
	return nil
}

func applyMatch(params url.Values, match map[string]any) {
	for col, val := range match {
		params.Set(col, "eq."+formatValue(val))
	}
}

// orGroups compiles AnyOf filter groups into the service's
// or=(and(a,b),and(c,d)) grammar. Columns are emitted in sorted order
// so the query string is stable.
func orGroups(groups []map[string]any) string {
	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		cols := make([]string, 0, len(group))
		for col := range group {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		conds := make([]string, 0, len(cols))
		for _, col := range cols {
			conds = append(conds, col+".eq."+formatValue(group[col]))
		}

		if len(conds) == 1 {
			parts = append(parts, conds[0])
			continue
		}
		parts = append(parts, "and("+strings.Join(conds, ",")+")")
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
