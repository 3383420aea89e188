package idem

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBeginBlocksDuplicateKey(t *testing.T) {
	g := NewGuard()

	release, inflight := g.Begin("k1")
	if inflight {
		t.Fatal("first Begin reported inflight")
	}
	if _, dup := g.Begin("k1"); !dup {
		t.Error("second Begin with same key should report inflight")
	}

	release()
	if _, dup := g.Begin("k1"); dup {
		t.Error("Begin after release should admit the key again")
	}
}

func TestBeginEmptyKeyNeverDedups(t *testing.T) {
	g := NewGuard()

	_, first := g.Begin("")
	_, second := g.Begin("")
	if first || second {
		t.Error("empty keys must never be treated as duplicates")
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d, empty keys should not be tracked", g.Len())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := NewGuard()

	release, _ := g.Begin("k1")
	release()
	release()

	if _, dup := g.Begin("k1"); dup {
		t.Error("key should be free after release")
	}
}

// TestConcurrentBeginAdmitsExactlyOne races many goroutines on the same key
// and checks that only one wins the in-flight slot.
func TestConcurrentBeginAdmitsExactlyOne(t *testing.T) {
	g := NewGuard()

	const n = 50
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, inflight := g.Begin("race-key"); !inflight {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted.Load() != 1 {
		t.Errorf("admitted %d submissions, want exactly 1", admitted.Load())
	}
}

func TestExpiredKeyIsReclaimed(t *testing.T) {
	g := NewGuard()

	now := time.Now()
	g.now = func() time.Time { return now }

	if _, inflight := g.Begin("k1"); inflight {
		t.Fatal("fresh key reported inflight")
	}

	// A never-released key blocks while fresh, then expires.
	if _, inflight := g.Begin("k1"); !inflight {
		t.Fatal("unexpired key should block")
	}

	g.now = func() time.Time { return now.Add(DefaultTTL + time.Second) }
	if _, inflight := g.Begin("k1"); inflight {
		t.Error("expired key should be reclaimed by the next Begin")
	}
}
