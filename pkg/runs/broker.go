package runs

import (
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

const subscriberBuffer = 64

// broker fans persisted run events out to live subscribers.
// Slow subscribers lose events; they can catch up from the store by sequence.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan *domain.EventRecord]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[chan *domain.EventRecord]struct{})}
}

func (b *broker) subscribe(runID string) (<-chan *domain.EventRecord, func()) {
	ch := make(chan *domain.EventRecord, subscriberBuffer)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan *domain.EventRecord]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[runID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, runID)
				}
			}
		})
	}
}

// publish reports whether the run had subscribers and every one of them
// received every event.
func (b *broker) publish(runID string, events []*domain.EventRecord) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	complete := len(b.subs[runID]) > 0
	for ch := range b.subs[runID] {
		for _, e := range events {
			select {
			case ch <- e:
			default:
				complete = false
			}
		}
	}
	return complete
}

// close ends every subscription of the run.
func (b *broker) close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		close(ch)
	}
	delete(b.subs, runID)
}
