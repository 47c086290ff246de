package sync

import "context"

// paginate drains a keyed table in ascending key order. fetch is called
// with the exclusive lower bound cursor, starting at -1 so a key of 0 is
// included, and must return rows ordered by key. flush persists one page.
// Iteration stops at the first empty page, which costs one extra query
// on the final page but never misses a short tail.
func paginate[T any](ctx context.Context, fetch func(cursor int64) ([]T, error), key func(T) int64, flush func(context.Context, []T) error) error {
	cursor := int64(-1)
	for {
		rows, err := fetch(cursor)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := flush(ctx, rows); err != nil {
			return err
		}
		cursor = key(rows[len(rows)-1])
	}
}

// paginateRelation drains a join table ordered lexicographically by its
// composite (group, item) key. The cursor starts below any real key and
// advances to the last row of each page.
func paginateRelation[T any](ctx context.Context, fetch func(group, item int64) ([]T, error), key func(T) (int64, int64), flush func(context.Context, []T) error) error {
	group, item := int64(-1), int64(-1)
	for {
		rows, err := fetch(group, item)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := flush(ctx, rows); err != nil {
			return err
		}
		group, item = key(rows[len(rows)-1])
	}
}
