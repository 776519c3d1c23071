package main

import (
	"context"
	"sync"
)

// shutdown closes the library at most once, whether the shell exits normally
// or a signal arrives first.
type shutdown struct {
	once sync.Once
	lib  interface{ Close(context.Context) error }
	err  error
}

// Close reports whether this call did the closing, along with the close error.
func (s *shutdown) Close(ctx context.Context) (bool, error) {
	first := false
	s.once.Do(func() {
		first = true
		s.err = s.lib.Close(ctx)
	})
	return first, s.err
}
