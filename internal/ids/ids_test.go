package ids

import (
	"sync"
	"testing"
)

func TestNewIsUniqueUnderConcurrency(t *testing.T) {
	const n = 64
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := New()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %q", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()

	for id := range seen {
		if len(id) != 26 {
			t.Fatalf("unexpected id length for %q", id)
		}
	}
}
