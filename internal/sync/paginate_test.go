package sync

import (
	"context"
	"testing"
)

type keyed struct {
	id int64
}

// fetchFrom simulates a keyed table scan: rows with id > cursor, up to
// limit per page (limit <= 0 means all).
func fetchFrom(rows []keyed, cursor int64, limit int) []keyed {
	var page []keyed
	for _, r := range rows {
		if r.id > cursor {
			page = append(page, r)
			if limit > 0 && len(page) == limit {
				break
			}
		}
	}
	return page
}

func TestPaginateVisitsEveryRowOnce(t *testing.T) {
	rows := make([]keyed, 0, 57)
	for i := int64(0); i < 57; i++ {
		rows = append(rows, keyed{id: i * 3}) // sparse keys
	}

	for _, pageSize := range []int{1, 2, 7, 56, 57, 100} {
		seen := make(map[int64]int)
		var order []int64

		err := paginate(context.Background(),
			func(cursor int64) ([]keyed, error) {
				return fetchFrom(rows, cursor, pageSize), nil
			},
			func(r keyed) int64 { return r.id },
			func(_ context.Context, page []keyed) error {
				for _, r := range page {
					seen[r.id]++
					order = append(order, r.id)
				}
				return nil
			})
		if err != nil {
			t.Fatalf("pageSize %d: unexpected error: %v", pageSize, err)
		}

		if len(seen) != len(rows) {
			t.Errorf("pageSize %d: expected %d distinct rows, got %d", pageSize, len(rows), len(seen))
		}
		for id, count := range seen {
			if count != 1 {
				t.Errorf("pageSize %d: row %d visited %d times", pageSize, id, count)
			}
		}
		for i := 1; i < len(order); i++ {
			if order[i] <= order[i-1] {
				t.Errorf("pageSize %d: out of order at position %d: %d after %d", pageSize, i, order[i], order[i-1])
			}
		}
	}
}

func TestPaginateFetchCount(t *testing.T) {
	// 2,500 rows at page size 1,000 take three data fetches plus one
	// final empty fetch that terminates the scan.
	rows := make([]keyed, 2500)
	for i := range rows {
		rows[i] = keyed{id: int64(i)}
	}

	fetches := 0
	var pageSizes []int

	err := paginate(context.Background(),
		func(cursor int64) ([]keyed, error) {
			fetches++
			return fetchFrom(rows, cursor, 1000), nil
		},
		func(r keyed) int64 { return r.id },
		func(_ context.Context, page []keyed) error {
			pageSizes = append(pageSizes, len(page))
			return nil
		})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if fetches != 4 {
		t.Errorf("Expected 4 fetches (3 full + 1 empty), got %d", fetches)
	}
	want := []int{1000, 1000, 500}
	if len(pageSizes) != len(want) {
		t.Fatalf("Expected %d flushed pages, got %d", len(want), len(pageSizes))
	}
	for i, n := range want {
		if pageSizes[i] != n {
			t.Errorf("Page %d: expected %d rows, got %d", i, n, pageSizes[i])
		}
	}
}

func TestPaginateEmptyTable(t *testing.T) {
	flushed := false
	err := paginate(context.Background(),
		func(cursor int64) ([]keyed, error) { return nil, nil },
		func(r keyed) int64 { return r.id },
		func(_ context.Context, page []keyed) error {
			flushed = true
			return nil
		})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if flushed {
		t.Error("flush should not be called for an empty table")
	}
}

type pair struct {
	group, item int64
}

func pairGreater(a pair, group, item int64) bool {
	return a.group > group || (a.group == group && a.item > item)
}

func fetchPairsFrom(rows []pair, group, item int64, limit int) []pair {
	var page []pair
	for _, r := range rows {
		if pairGreater(r, group, item) {
			page = append(page, r)
			if limit > 0 && len(page) == limit {
				break
			}
		}
	}
	return page
}

func TestPaginateRelationLexicographic(t *testing.T) {
	// Many items under few groups: the group component repeats across
	// page boundaries, so only lexicographic comparison makes progress.
	var rows []pair
	for g := int64(1); g <= 3; g++ {
		for i := int64(1); i <= 40; i++ {
			rows = append(rows, pair{group: g, item: i})
		}
	}

	for _, pageSize := range []int{1, 7, 40, 120} {
		seen := make(map[pair]int)
		var order []pair

		err := paginateRelation(context.Background(),
			func(group, item int64) ([]pair, error) {
				return fetchPairsFrom(rows, group, item, pageSize), nil
			},
			func(r pair) (int64, int64) { return r.group, r.item },
			func(_ context.Context, page []pair) error {
				for _, r := range page {
					seen[r]++
					order = append(order, r)
				}
				return nil
			})
		if err != nil {
			t.Fatalf("pageSize %d: unexpected error: %v", pageSize, err)
		}

		if len(seen) != len(rows) {
			t.Errorf("pageSize %d: expected %d distinct pairs, got %d", pageSize, len(rows), len(seen))
		}
		for p, count := range seen {
			if count != 1 {
				t.Errorf("pageSize %d: pair %+v visited %d times", pageSize, p, count)
			}
		}
		for i := 1; i < len(order); i++ {
			if !pairGreater(order[i], order[i-1].group, order[i-1].item) {
				t.Errorf("pageSize %d: lexicographic order violated at %d: %+v after %+v",
					pageSize, i, order[i], order[i-1])
			}
		}
	}
}
