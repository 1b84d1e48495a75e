package domain

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("a|2026-02")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
	if len(locks.entries) != 0 {
		t.Fatalf("entries = %d, want 0 after release", len(locks.entries))
	}
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	locks := newKeyedMutex()
	unlock := locks.Lock("k")
	unlock()
	unlock()
	locks.Lock("k")()
}
