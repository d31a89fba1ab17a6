package statechart

import (
	"context"
	"sync"
)

// completion is resolved exactly once, when the processor terminates
type completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// resolve stores err and wakes every waiter; later calls are ignored
func (c *completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// current returns the stored error, nil while unresolved
func (c *completion) current() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *completion) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
