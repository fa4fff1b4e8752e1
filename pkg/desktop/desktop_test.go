package desktop

import (
	"errors"
	"sync"
	"testing"

	n "github.com/0xAX/notificator"
)

type fakePusher struct {
	mu       sync.Mutex
	texts    []string
	urgency  []string
	failWith error
}

func (f *fakePusher) Push(title, text, iconPath, urgency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.urgency = append(f.urgency, urgency)
	return f.failWith
}

func TestNotifierDelivers(t *testing.T) {
	pusher := &fakePusher{}
	note := NewWithPusher(pusher)

	note.Send(Message{Text: "Tests passed"})
	note.Send(Message{Text: "Tests failed", Failed: true})
	note.Close()

	if len(pusher.texts) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(pusher.texts))
	}
	if pusher.urgency[0] != n.UR_NORMAL || pusher.urgency[1] != n.UR_CRITICAL {
		t.Errorf("unexpected urgency %v", pusher.urgency)
	}
}

func TestNotifierIgnoresPushErrors(t *testing.T) {
	pusher := &fakePusher{failWith: errors.New("notify-send not found")}
	note := NewWithPusher(pusher)
	note.Send(Message{Text: "one"})
	note.Send(Message{Text: "two"})
	note.Close()

	if len(pusher.texts) != 2 {
		t.Errorf("expected delivery to continue after an error, got %d", len(pusher.texts))
	}
}

func TestLazyStartsOnFirstSend(t *testing.T) {
	pusher := &fakePusher{}
	var created int
	lazy := NewLazy(func() *Notifier {
		created++
		return NewWithPusher(pusher)
	})

	if created != 0 {
		t.Fatalf("notifier started before use")
	}
	lazy.Send(Message{Text: "one"})
	lazy.Send(Message{Text: "two"})
	lazy.Close()
	lazy.Send(Message{Text: "after close"})

	if created != 1 {
		t.Errorf("expected one notifier, got %d", created)
	}
	if len(pusher.texts) != 2 {
		t.Errorf("expected 2 notifications, got %v", pusher.texts)
	}
}

func TestLazyCloseWithoutSend(t *testing.T) {
	lazy := NewLazy(func() *Notifier {
		t.Error("notifier started without a message")
		return NewWithPusher(&fakePusher{})
	})
	lazy.Close()
}
