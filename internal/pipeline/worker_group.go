package pipeline

import "sync"

// WorkerGroup tracks the goroutines of one publish run. Workers are started
// before Wait is called, never concurrently with it.
type WorkerGroup struct {
	wg sync.WaitGroup
}

// Go starts fn on a new goroutine; nil is ignored.
func (g *WorkerGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every started worker has returned.
func (g *WorkerGroup) Wait() {
	g.wg.Wait()
}
