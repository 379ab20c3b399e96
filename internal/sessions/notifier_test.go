package sessions

import "testing"

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()
	a, cancelA := n.Subscribe("s1")
	b, cancelB := n.Subscribe("s1")
	other, cancelOther := n.Subscribe("s2")
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	n.Publish("s1", Update{Status: StatusProcessing, Progress: 10})

	for name, ch := range map[string]<-chan Update{"a": a, "b": b} {
		select {
		case u := <-ch:
			if u.Progress != 10 {
				t.Fatalf("%s got %+v", name, u)
			}
		default:
			t.Fatalf("%s received nothing", name)
		}
	}
	select {
	case u := <-other:
		t.Fatalf("s2 subscriber got s1 update %+v", u)
	default:
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("s1")
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatalf("channel still open after cancel")
	}
	// Publishing to a session with no subscribers is a no-op.
	n.Publish("s1", Update{Status: StatusFailed})
}

func TestNotifierDropsWhenSubscriberFull(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("s1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		n.Publish("s1", Update{Status: StatusProcessing, Progress: i})
	}
	// The publisher never blocked; the slow consumer just lost the
	// overflow snapshots.
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered %d, want %d", len(ch), subscriberBuffer)
	}
}
