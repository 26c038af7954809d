package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"caratdash/api/database"
	"caratdash/api/models"
)

// MaxPageLength caps any requested page size.
const MaxPageLength = 1000

// Runner executes a query and streams its rows. *database.Session implements it.
type Runner interface {
	Run(ctx context.Context, q database.Query, scan func(database.Rows) error) error
}

// Aggregation describes a ranked aggregation over a filtered base relation.
// The count query and the page query share From and Where, so the total is
// always consistent with the filters of the page.
type Aggregation struct {
	Name     string
	From     string
	FromArgs []any // arguments bound inside From, ahead of the Where arguments
	Where    []Clause
	Count    string   // distinct-count expression over the ranked key
	Select   string   // page projection
	GroupBy  string   // empty for ungrouped pages
	OrderBy  []string // primary key first, then tie-breaks
}

func (a Aggregation) args(where []any) []any {
	args := make([]any, 0, len(a.FromArgs)+len(where)+2)
	args = append(args, a.FromArgs...)
	return append(args, where...)
}

func (a Aggregation) countQuery() database.Query {
	where, whereArgs := Where(a.Where...)
	return database.Query{
		Name: a.Name + ".count",
		SQL: fmt.Sprintf(`
		SELECT %s AS total
		FROM %s
		WHERE %s`, a.Count, a.From, where),
		Args: a.args(whereArgs),
	}
}

func (a Aggregation) pageQuery(start, length int) database.Query {
	where, whereArgs := Where(a.Where...)
	groupBy := ""
	if a.GroupBy != "" {
		groupBy = "GROUP BY " + a.GroupBy
	}
	return database.Query{
		Name: a.Name + ".page",
		SQL: fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		%s
		ORDER BY %s
		LIMIT ? OFFSET ?`, a.Select, a.From, where, groupBy, strings.Join(a.OrderBy, ", ")),
		Args: append(a.args(whereArgs), length, start),
	}
}

// Page runs the distinct-count query and the page query concurrently and
// joins them. If either fails the page is discarded. An empty window still
// reports the total.
func Page[T any](ctx context.Context, r Runner, agg Aggregation, start, length int, scan func(database.Rows) (T, error)) (models.AggregationPage[T], error) {
	if len(agg.OrderBy) == 0 {
		return models.AggregationPage[T]{}, models.NewError(models.KindQuery, agg.Name, fmt.Errorf("aggregation has no ordering"))
	}
	if start < 0 {
		start = 0
	}
	if length <= 0 {
		total, err := scalar(ctx, r, agg.countQuery())
		if err != nil {
			return models.AggregationPage[T]{}, err
		}
		return models.AggregationPage[T]{Total: total, Rows: []T{}}, nil
	}
	if length > MaxPageLength {
		length = MaxPageLength
	}

	var (
		total uint64
		rows  []T
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = scalar(gctx, r, agg.countQuery())
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = collect(gctx, r, agg.pageQuery(start, length), scan)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AggregationPage[T]{}, err
	}

	if rows == nil {
		rows = []T{}
	}
	return models.AggregationPage[T]{Total: total, Rows: rows}, nil
}

// collect runs q and gathers every scanned row.
func collect[T any](ctx context.Context, r Runner, q database.Query, scan func(database.Rows) (T, error)) ([]T, error) {
	var out []T
	err := r.Run(ctx, q, func(rows database.Rows) error {
		v, err := scan(rows)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scalar runs a single-value count query. No rows means zero.
func scalar(ctx context.Context, r Runner, q database.Query) (uint64, error) {
	var total uint64
	err := r.Run(ctx, q, func(rows database.Rows) error {
		return rows.Scan(&total)
	})
	return total, err
}
