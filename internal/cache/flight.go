package cache

import (
	"context"
	"sync"

	"github.com/prdraft/prdraft/internal/models"
)

// Arena deduplicates concurrent generations for the same canonical key.
// Callers asking for a key with an execution already in flight join it
// instead of starting a second one; every joiner receives the same result.
//
// Cancellation is caller-local: a joiner that gives up stops waiting
// without disturbing the others. Only when the last waiter leaves is the
// underlying execution aborted.
type Arena struct {
	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	done    chan struct{}
	result  *models.GenerationResult
	err     error
	waiters int
	cancel  context.CancelFunc
}

// NewArena creates an empty flight arena.
func NewArena() *Arena {
	return &Arena{flights: make(map[string]*flight)}
}

// Do runs fn for key, or joins an execution already in flight. fn receives
// a context detached from any single caller: it is canceled only when
// every waiter has abandoned the flight.
func (a *Arena) Do(ctx context.Context, key string, fn func(ctx context.Context) (*models.GenerationResult, error)) (*models.GenerationResult, error) {
	a.mu.Lock()
	fl, ok := a.flights[key]
	if ok {
		fl.waiters++
	} else {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{
			done:    make(chan struct{}),
			waiters: 1,
			cancel:  cancel,
		}
		a.flights[key] = fl

		go func() {
			result, err := fn(runCtx)

			a.mu.Lock()
			fl.result = result
			fl.err = err
			delete(a.flights, key)
			a.mu.Unlock()

			close(fl.done)
			cancel()
		}()
	}
	a.mu.Unlock()

	select {
	case <-fl.done:
		return fl.result, fl.err
	case <-ctx.Done():
		a.mu.Lock()
		fl.waiters--
		if fl.waiters == 0 {
			// Nobody left to consume the result: abort the execution.
			fl.cancel()
		}
		a.mu.Unlock()
		return nil, ctx.Err()
	}
}

// InFlight reports how many executions are currently running.
func (a *Arena) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.flights)
}
