// internal/common/toast/toast.go
package toast

import (
	"sync"
	"time"

	"marketplace-console/internal/common/logger"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier surfaces short user-facing messages.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// LogNotifier writes toasts through the structured logger.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.ForComponent(log, "toast")}
}

func (n *LogNotifier) Success(message string) {
	n.logger.Info(message, map[string]interface{}{"level": LevelSuccess})
}

func (n *LogNotifier) Error(message string) {
	n.logger.Error(message, map[string]interface{}{"level": LevelError})
}

func (n *LogNotifier) Info(message string) {
	n.logger.Info(message, map[string]interface{}{"level": LevelInfo})
}

// Recorder keeps toasts in memory; used by tests and the CLI to print results.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message, At: time.Now()})
}

func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }
func (r *Recorder) Info(message string)    { r.add(LevelInfo, message) }

// All returns a copy of every recorded toast.
func (r *Recorder) All() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Last returns the most recent toast and whether one exists.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

// Errors returns only error toasts.
func (r *Recorder) Errors() []Toast {
	var out []Toast
	for _, t := range r.All() {
		if t.Level == LevelError {
			out = append(out, t)
		}
	}
	return out
}

// Multi fans a toast out to several notifiers.
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (m Multi) Info(message string) {
	for _, n := range m {
		n.Info(message)
	}
}
