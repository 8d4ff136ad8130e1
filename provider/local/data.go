package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prolink/prolink-go"
	"github.com/uptrace/bun"
)

// dataAPI emulates the hosted table surface on bun. Row changes made
// through it are announced on the in-process change feed, matching the
// hosted realtime behavior.
type dataAPI struct {
	backend *Backend
}

var _ prolink.DataAPI = (*dataAPI)(nil)

func (d *dataAPI) SelectOne(ctx context.Context, table string, match map[string]any, dest any) error {
	q := d.backend.db.NewSelect().Model(dest).Limit(1)
	q = applySelectMatch(q, match)

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(table)
		}
		return wrapUnavailable(err)
	}
	return nil
}

func (d *dataAPI) Select(ctx context.Context, table string, query prolink.Query, dest any) error {
	q := d.backend.db.NewSelect().Model(dest)
	q = applySelectMatch(q, query.Match)

	if len(query.AnyOf) > 0 {
		groups := query.AnyOf
		q = q.WhereGroup(" AND ", func(outer *bun.SelectQuery) *bun.SelectQuery {
			for _, group := range groups {
				g := group
				outer = outer.WhereGroup(" OR ", func(inner *bun.SelectQuery) *bun.SelectQuery {
					for col, val := range g {
						inner = inner.Where("? = ?", bun.Ident(col), val)
					}
					return inner
				})
			}
			return outer
		})
	}

	if query.OrderBy != "" {
		dir := " ASC"
		if query.Descending {
			dir = " DESC"
		}
		q = q.OrderExpr("? ?", bun.Ident(query.OrderBy), bun.Safe(dir))
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return wrapUnavailable(err)
	}
	return nil
}

func (d *dataAPI) Insert(ctx context.Context, table string, record, dest any) error {
	q := d.backend.db.NewInsert().Model(record)
	if dest != nil {
		q = q.Returning("*")
	}

	var err error
	if dest != nil {
		_, err = q.Exec(ctx, dest)
	} else {
		_, err = q.Exec(ctx)
	}
	if err != nil {
		return wrapUnavailable(err)
	}

	announced := record
	if dest != nil {
		announced = dest
	}
	d.backend.hub.publish(prolink.ChangeEvent{
		Table:  table,
		Kind:   prolink.ChangeInsert,
		Record: recordOf(announced),
	})
	return nil
}

func (d *dataAPI) Update(ctx context.Context, table string, match map[string]any, fields map[string]any) error {
	q := d.backend.db.NewUpdate().Table(table)
	for col, val := range fields {
		q = q.Set("? = ?", bun.Ident(col), val)
	}
	for col, val := range match {
		q = q.Where("? = ?", bun.Ident(col), val)
	}

	if _, err := q.Exec(ctx); err != nil {
		return wrapUnavailable(err)
	}

	record := map[string]any{}
	for col, val := range match {
		record[col] = val
	}
	for col, val := range fields {
		record[col] = val
	}
	d.backend.hub.publish(prolink.ChangeEvent{
		Table:  table,
		Kind:   prolink.ChangeUpdate,
		Record: record,
	})
	return nil
}

func (d *dataAPI) Delete(ctx context.Context, table string, match map[string]any) error {
	q := d.backend.db.NewDelete().Table(table)
	for col, val := range match {
		q = q.Where("? = ?", bun.Ident(col), val)
	}

	if _, err := q.Exec(ctx); err != nil {
		return wrapUnavailable(err)
	}

	record := map[string]any{}
	for col, val := range match {
		record[col] = val
	}
	d.backend.hub.publish(prolink.ChangeEvent{
		Table:  table,
		Kind:   prolink.ChangeDelete,
		Record: record,
	})
	return nil
}

func applySelectMatch(q *bun.SelectQuery, match map[string]any) *bun.SelectQuery {
	for col, val := range match {
		q = q.Where("? = ?", bun.Ident(col), val)
	}
	return q
}

func notFound(table string) error {
	return goerrors.Wrap(prolink.ErrProfileNotFound, goerrors.CategoryNotFound, "row not found").
		WithMetadata(map[string]any{"table": table})
}

// recordOf flattens a typed row into the change-event record shape
// through its json tags.
func recordOf(row any) map[string]any {
	raw, err := json.Marshal(row)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
