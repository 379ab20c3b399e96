package sessions

import "sync"

// subscriber channels are buffered; a slow consumer loses intermediate
// snapshots rather than blocking the pipeline.
const subscriberBuffer = 16

// Notifier is the in-process push channel for session status updates.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[chan Update]struct{}
}

// NewNotifier constructs a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers for updates on one session. The returned cancel
// func must be called to release the subscription; the channel is
// closed by cancel.
func (n *Notifier) Subscribe(sessionID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	n.mu.Lock()
	set, ok := n.subs[sessionID]
	if !ok {
		set = make(map[chan Update]struct{})
		n.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			if set, ok := n.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(n.subs, sessionID)
				}
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish broadcasts a snapshot to all subscribers of the session.
func (n *Notifier) Publish(sessionID string, u Update) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs[sessionID] {
		select {
		case ch <- u:
		default:
		}
	}
}
