// internal/pool/pool_test.go
package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunReturnsJobOutcome(t *testing.T) {
	t.Parallel()

	p := New(2)
	got, err := Run(p, func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got != 42 {
		t.Fatalf("Run value = %d, want 42", got)
	}

	wantErr := errors.New("boom")
	_, err = Run(p, func() (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run error = %v, want %v", err, wantErr)
	}
}

func TestConcurrencyNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	const limit = 3
	const jobs = 20

	p := New(limit)
	var inFlight, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(func() error {
				n := inFlight.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > limit {
		t.Fatalf("peak concurrency = %d, want <= %d", got, limit)
	}
}

func TestFailingJobDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	p := New(1)
	var completed atomic.Int32

	results := make([]<-chan Result[struct{}], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		results = append(results, Submit(p, func() (struct{}, error) {
			completed.Add(1)
			if i%2 == 0 {
				return struct{}{}, errors.New("job failed")
			}
			return struct{}{}, nil
		}))
	}

	var failures int
	for _, ch := range results {
		if r := <-ch; r.Err != nil {
			failures++
		}
	}

	if got := completed.Load(); got != 10 {
		t.Fatalf("completed jobs = %d, want 10", got)
	}
	if failures != 5 {
		t.Fatalf("failed jobs = %d, want 5", failures)
	}
}

func TestFIFOAdmissionOrder(t *testing.T) {
	t.Parallel()

	p := New(1)
	var mu sync.Mutex
	var order []int

	// Occupy the single slot so subsequent submissions queue up.
	release := make(chan struct{})
	first := Submit(p, func() (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	chans := make([]<-chan Result[struct{}], 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		chans = append(chans, Submit(p, func() (struct{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return struct{}{}, nil
		}))
	}
	close(release)
	<-first
	for _, ch := range chans {
		<-ch
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("admission order = %v, want ascending", order)
		}
	}
}
