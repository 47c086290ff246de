package sync

import (
	"sort"
	stdsync "sync"
	"testing"
	"time"
)

func TestTimestampEncoding(t *testing.T) {
	phys := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := NewTimestamp(phys, 7)

	if got := ts.Time().UnixMilli(); got != phys.UnixMilli() {
		t.Errorf("Expected physical time %d, got %d", phys.UnixMilli(), got)
	}
	if got := ts.Counter(); got != 7 {
		t.Errorf("Expected counter 7, got %d", got)
	}
}

func TestClockMonotonic(t *testing.T) {
	clock := NewClock()

	prev := clock.Now()
	for i := 0; i < 10000; i++ {
		ts := clock.Now()
		if ts <= prev {
			t.Fatalf("Clock went backwards at tick %d: %d <= %d", i, ts, prev)
		}
		prev = ts
	}
}

func TestClockOrdersEqualPhysicalTime(t *testing.T) {
	clock := NewClock()

	// Draw timestamps faster than the millisecond resolution of the
	// physical component; the counter must break the ties.
	seen := make(map[Timestamp]bool)
	var last Timestamp
	for i := 0; i < 1000; i++ {
		ts := clock.Now()
		if seen[ts] {
			t.Fatalf("Duplicate timestamp %d at tick %d", ts, i)
		}
		seen[ts] = true
		if ts <= last {
			t.Fatalf("Non-increasing timestamp at tick %d", i)
		}
		last = ts
	}
}

func TestClockConcurrentUniqueness(t *testing.T) {
	clock := NewClock()

	const goroutines = 8
	const perGoroutine = 500

	results := make([][]Timestamp, goroutines)
	var wg stdsync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			out := make([]Timestamp, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				out = append(out, clock.Now())
			}
			results[g] = out
		}(g)
	}
	wg.Wait()

	var all []Timestamp
	for _, r := range results {
		all = append(all, r...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("Duplicate timestamp %d issued to concurrent callers", all[i])
		}
	}
}
