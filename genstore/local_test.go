package genstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalSnapshotManyIncludesAllAndZeroForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	keys := []string{"a", "b", "c"}
	// bump b twice -> gen=2
	for want := uint64(0); want < 2; want++ {
		if _, ok, err := s.CompareAndBump(ctx, "b", want); err != nil || !ok {
			t.Fatalf("bump from %d: ok=%v err=%v", want, ok, err)
		}
	}

	got, err := s.SnapshotMany(ctx, keys)
	if err != nil {
		t.Fatal(err)
	}

	if got["a"] != 0 || got["b"] != 2 || got["c"] != 0 {
		t.Fatalf("got=%v want a=0,b=2,c=0", got)
	}
}

func TestLocalCompareAndBump(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	n, ok, err := s.CompareAndBump(ctx, "k", 0)
	if err != nil || !ok || n != 1 {
		t.Fatalf("first CAS: n=%d ok=%v err=%v", n, ok, err)
	}
	// stale expectation
	if _, ok, _ := s.CompareAndBump(ctx, "k", 0); ok {
		t.Fatalf("CAS with stale gen must fail")
	}
	n, ok, err = s.CompareAndBump(ctx, "k", 1)
	if err != nil || !ok || n != 2 {
		t.Fatalf("second CAS: n=%d ok=%v err=%v", n, ok, err)
	}
	if g, _ := s.Snapshot(ctx, "k"); g != 2 {
		t.Fatalf("snapshot=%d want 2", g)
	}
}

func TestLocalCompareAndBumpSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, ok, _ := s.CompareAndBump(ctx, "hot", 0); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins=%d want 1", wins)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, time.Second) // retention=1s
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, ok, err := s.CompareAndBump(ctx, "old", 0); err != nil || !ok {
		t.Fatalf("bump: ok=%v err=%v", ok, err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned gen=0, got %d", g)
	}
}

func TestLocalCloseIdempotent(t *testing.T) {
	s := NewLocalGenStore(10*time.Millisecond, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
