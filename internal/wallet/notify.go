package wallet

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"

	"crowdfund.io/crowdfund-dapp/pkg/log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-visible message, the equivalent of a toast.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Kind    string    `json:"kind,omitempty"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		log.Warnf("notify %s: %s", n.Kind, n.Message)
		return
	}
	log.Infof("notify: %s", n.Message)
}

// Feed keeps the most recent notifications for a UI to poll and forwards each one to
// next, if set.
type Feed struct {
	mu     sync.Mutex
	buffer *circularbuffer.Queue
	next   Notifier
}

func NewFeed(size int, next Notifier) *Feed {
	if size <= 0 {
		size = 32
	}
	return &Feed{buffer: circularbuffer.New(size), next: next}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	f.buffer.Enqueue(n)
	f.mu.Unlock()
	if f.next != nil {
		f.next.Notify(n)
	}
}

// Recent returns buffered notifications oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.buffer.Values()
	out := make([]Notification, 0, len(values))
	for _, v := range values {
		out = append(out, v.(Notification))
	}
	return out
}

// Drain returns buffered notifications oldest first and empties the feed.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, 0, f.buffer.Size())
	for {
		v, ok := f.buffer.Dequeue()
		if !ok {
			return out
		}
		out = append(out, v.(Notification))
	}
}
