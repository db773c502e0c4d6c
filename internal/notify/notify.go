// Package notify delivers user-visible outcomes ("toasts") of background
// work such as queue syncs and forced logouts.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Toast struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier writes toasts to the application log.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log.WithField("module", "notify")}
}

func (n *LogNotifier) Notify(level Level, message string) {
	e := n.log.WithField("level_ui", string(level))
	switch level {
	case LevelError:
		e.Error(message)
	case LevelWarning:
		e.Warn(message)
	default:
		e.Info(message)
	}
}

// Feed keeps the most recent toasts in memory for clients that poll.
type Feed struct {
	mu    sync.Mutex
	items []Toast
	size  int
	now   func() time.Time
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{size: size, now: time.Now}
}

func (f *Feed) Notify(level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, Toast{ID: uuid.NewString(), Level: level, Message: message, At: f.now()})
	if len(f.items) > f.size {
		f.items = append([]Toast(nil), f.items[len(f.items)-f.size:]...)
	}
}

// Since returns toasts newer than t, oldest first.
func (f *Feed) Since(t time.Time) []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Toast, 0, len(f.items))
	for _, it := range f.items {
		if it.At.After(t) {
			out = append(out, it)
		}
	}
	return out
}

// All returns every retained toast, oldest first.
func (f *Feed) All() []Toast {
	return f.Since(time.Time{})
}

// Multi fans a toast out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, message string) {
	for _, n := range m {
		n.Notify(level, message)
	}
}

// Discard drops every toast.
type Discard struct{}

func (Discard) Notify(Level, string) {}
