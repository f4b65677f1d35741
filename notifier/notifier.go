package notifier

import (
	"context"
	"sync"
)

// Notifier wakes every subscriber when new events are journaled. A wakeup
// carries no data; subscribers re-read from their own cursor.
type Notifier struct {
	subscribers map[chan struct{}]struct{}
	mu          sync.Mutex
}

func New() *Notifier {
	return &Notifier{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe registers a wakeup channel. It is removed and closed when ctx is
// done or when Unsubscribe is called, whichever comes first.
func (n *Notifier) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			n.Unsubscribe(ch)
		}()
	}
	return ch
}

func (n *Notifier) Unsubscribe(ch <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subscribers {
		if sub == ch {
			delete(n.subscribers, sub)
			close(sub)
			return
		}
	}
}

func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subscribers)
}

func (n *Notifier) NotifyAll() {
	n.mu.Lock()
	for ch := range n.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// a wakeup is already pending
		}
	}
	n.mu.Unlock()
}
