package runner

import (
	"context"
	"sync"
)

// Group runs long-lived components and remembers the first error any of
// them returned.
type Group struct {
	wg    sync.WaitGroup
	once  sync.Once
	first error
}

func (g *Group) Go(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn(ctx)
		if err != nil {
			g.once.Do(func() { g.first = err })
		}
		done <- err
		close(done)
	}()
	return done
}

// Wait blocks until every component returned and reports the first error.
func (g *Group) Wait() error {
	g.wg.Wait()
	return g.first
}
