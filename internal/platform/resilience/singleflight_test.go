package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlightRunsLeaderOnce(t *testing.T) {
	var g SingleFlight
	var executions int32
	var shared int32

	release := make(chan struct{})
	leaderIn := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err, _ := g.Do("match-page", func() (any, error) {
			atomic.AddInt32(&executions, 1)
			close(leaderIn)
			<-release
			return "body", nil
		})
		if err != nil {
			t.Errorf("leader returned error: %v", err)
		}
	}()
	<-leaderIn

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err, wasShared := g.Do("match-page", func() (any, error) {
				atomic.AddInt32(&executions, 1)
				return "body", nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
			}
			if val != "body" {
				t.Errorf("Do returned %v, want body", val)
			}
			if wasShared {
				atomic.AddInt32(&shared, 1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Fatalf("leader ran %d times, want 1", got)
	}
	if got := atomic.LoadInt32(&shared); got != 8 {
		t.Fatalf("%d callers shared the result, want 8", got)
	}
}

func TestSingleFlightDistinctKeysRunIndependently(t *testing.T) {
	var g SingleFlight

	val, _, _ := g.Do("a", func() (any, error) { return 1, nil })
	if val != 1 {
		t.Fatalf("key a = %v, want 1", val)
	}
	val, _, _ = g.Do("b", func() (any, error) { return 2, nil })
	if val != 2 {
		t.Fatalf("key b = %v, want 2", val)
	}
}
