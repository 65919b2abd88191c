package ledger

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

func TestReserve_DeniesPastQuota(t *testing.T) {
	l, err := New(5, NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.Reserve(3); err != nil {
		t.Fatalf("Reserve(3) failed: %v", err)
	}
	if err := l.Reserve(2); err != nil {
		t.Fatalf("Reserve(2) failed: %v", err)
	}

	err = l.Reserve(1)
	if !errors.Is(err, domain.ErrBudgetExhausted) {
		t.Errorf("Expected ErrBudgetExhausted, got %v", err)
	}
	if l.Used() != 5 {
		t.Errorf("Expected used 5 after denial, got %d", l.Used())
	}
}

func TestReserve_DenialLeavesCounterUntouched(t *testing.T) {
	l, err := New(10, NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := l.Reserve(8); err != nil {
		t.Fatalf("Reserve(8) failed: %v", err)
	}

	// Would overshoot: 8 + 5 > 10
	if err := l.Reserve(5); !errors.Is(err, domain.ErrBudgetExhausted) {
		t.Fatalf("Expected ErrBudgetExhausted, got %v", err)
	}
	if l.Remaining() != 2 {
		t.Errorf("Expected remaining 2, got %d", l.Remaining())
	}
}

func TestRelease_ReturnsUnits(t *testing.T) {
	l, err := New(10, NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := l.Reserve(6); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	l.Release(4)
	if l.Used() != 2 {
		t.Errorf("Expected used 2 after release, got %d", l.Used())
	}

	// Release can never drive the counter negative.
	l.Release(100)
	if l.Used() != 0 {
		t.Errorf("Expected used 0 after over-release, got %d", l.Used())
	}
}

func TestReserve_ConcurrentNeverExceedsQuota(t *testing.T) {
	const quota = 100
	l, err := New(quota, NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	granted := make(chan int, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Reserve(1); err == nil {
				granted <- 1
			}
		}()
	}
	wg.Wait()
	close(granted)

	total := 0
	for n := range granted {
		total += n
	}
	if total != quota {
		t.Errorf("Expected exactly %d grants, got %d", quota, total)
	}
	if l.Used() != quota {
		t.Errorf("Expected used %d, got %d", quota, l.Used())
	}
}

func TestReserve_RollsOverOnNewDay(t *testing.T) {
	store := NewMemoryStore()
	l, err := New(10, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	base := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	l.day = "2026-03-01"

	if err := l.Reserve(10); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := l.Reserve(1); !errors.Is(err, domain.ErrBudgetExhausted) {
		t.Fatalf("Expected exhaustion before rollover, got %v", err)
	}

	// Midnight passes.
	l.now = func() time.Time { return base.Add(2 * time.Hour) }

	if err := l.Reserve(1); err != nil {
		t.Errorf("Expected fresh quota after rollover, got %v", err)
	}
	if l.Used() != 1 {
		t.Errorf("Expected used 1 after rollover, got %d", l.Used())
	}
}

type failingStore struct {
	inner Store
	fail  bool
}

func (s *failingStore) Load(day string) (int, error) { return s.inner.Load(day) }
func (s *failingStore) Save(day string, used int) error {
	if s.fail {
		return fmt.Errorf("disk full")
	}
	return s.inner.Save(day, used)
}

func TestReserve_RollsBackOnPersistFailure(t *testing.T) {
	store := &failingStore{inner: NewMemoryStore()}
	l, err := New(10, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	store.fail = true
	if err := l.Reserve(3); err == nil {
		t.Fatal("Expected persist error, got nil")
	}
	if l.Used() != 0 {
		t.Errorf("Expected reservation rolled back, used = %d", l.Used())
	}

	store.fail = false
	if err := l.Reserve(3); err != nil {
		t.Errorf("Reserve after recovery failed: %v", err)
	}
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget_state.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save("2026-03-01", 42); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// New store instance, same file.
	store2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	used, err := store2.Load("2026-03-01")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != 42 {
		t.Errorf("Expected used 42 after restart, got %d", used)
	}

	// A stale day reads as zero.
	used, err = store2.Load("2026-03-02")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != 0 {
		t.Errorf("Expected 0 for a new day, got %d", used)
	}
}

func TestFileStore_MissingFileReadsZero(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	used, err := store.Load("2026-03-01")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != 0 {
		t.Errorf("Expected 0 for missing file, got %d", used)
	}
}
