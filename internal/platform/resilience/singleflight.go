package resilience

import "sync"

// SingleFlight collapses concurrent calls for the same key into one
// execution; waiters receive the leader's result. The third return
// value reports whether the result was shared from another caller.
type SingleFlight struct {
	mu    sync.Mutex
	inFly map[string]*flightCall
}

type flightCall struct {
	done chan struct{}
	val  any
	err  error
}

func (g *SingleFlight) Do(key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if g.inFly == nil {
		g.inFly = make(map[string]*flightCall)
	}
	if c, ok := g.inFly[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.err, true
	}

	c := &flightCall{done: make(chan struct{})}
	g.inFly[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.inFly, key)
	g.mu.Unlock()

	return c.val, c.err, false
}
