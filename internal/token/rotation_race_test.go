package token

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestConcurrentRotationHasExactlyOneWinner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	opaque, _, err := svc.CreateRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.RotateRefreshToken(ctx, opaque)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, reuses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenReused):
			reuses++
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", wins)
	}
	if reuses != racers-1 {
		t.Fatalf("expected %d reuse reports, got %d", racers-1, reuses)
	}
}
