// Package desktop sends desktop notifications when watched runs complete.
package desktop

import (
	"sync"

	n "github.com/0xAX/notificator"
	log "github.com/sirupsen/logrus"
)

// AppName Title used for every notification
const AppName = "buildwatch"

// Message A notification to show
type Message struct {
	Text   string
	Failed bool
}

// Pusher Delivers a single notification
type Pusher interface {
	Push(title, text, iconPath, urgency string) error
}

// Notifier Forwards messages from a channel to the desktop
type Notifier struct {
	messages chan Message
	pusher   Pusher
	done     chan bool
}

// New Creates a notifier using the system notification tool
func New() *Notifier {
	return NewWithPusher(n.New(n.Options{
		AppName: AppName,
	}))
}

// NewWithPusher Creates a notifier delivering through pusher
func NewWithPusher(pusher Pusher) *Notifier {
	var note *Notifier = &Notifier{
		messages: make(chan Message, 8),
		pusher:   pusher,
		done:     make(chan bool),
	}
	go note.run()
	return note
}

// Send Queues a message. Messages are dropped when the queue is full.
func (note *Notifier) Send(msg Message) {
	select {
	case note.messages <- msg:
	default:
		log.Debugf("Dropping notification %q", msg.Text)
	}
}

// Close Delivers queued messages and stops the notifier
func (note *Notifier) Close() {
	close(note.messages)
	<-note.done
}

func (note *Notifier) run() {
	defer close(note.done)
	for msg := range note.messages {
		var urgency string = n.UR_NORMAL
		if msg.Failed {
			urgency = n.UR_CRITICAL
		}
		log.Debugf("Sending message %s to notification system", msg.Text)
		if err := note.pusher.Push(AppName, msg.Text, "", urgency); err != nil {
			log.Debugf("Unable to send notification - %s", err.Error())
		}
	}
}

// Lazy A Notifier started on the first Send. Settings that enable
// notifications can then change after startup.
type Lazy struct {
	mu     sync.Mutex
	create func() *Notifier
	note   *Notifier
	closed bool
}

// NewLazy Creates a notifier calling create on the first Send
func NewLazy(create func() *Notifier) *Lazy {
	return &Lazy{create: create}
}

// Send Starts the notifier if needed and queues msg. Messages sent after
// Close are dropped.
func (l *Lazy) Send(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		log.Debugf("Dropping notification %q", msg.Text)
		return
	}
	if l.note == nil {
		l.note = l.create()
	}
	l.note.Send(msg)
}

// Close Stops the notifier if it was ever started
func (l *Lazy) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.note != nil {
		l.note.Close()
	}
}
