package stream

import "context"

// Watcher feeds filesystem changes into the index until its context is
// cancelled or its event source closes.
type Watcher interface {
	Run(ctx context.Context) error
}
