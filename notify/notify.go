// Package notify delivers the short success and failure messages shown to a
// user after each board mutation.
package notify

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a fire-and-forget message for one user.
type Notification struct {
	UserID  string    `json:"userId"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is used by the state stores. Calls never block on delivery.
type Notifier interface {
	Success(userID, msg string)
	Error(userID, msg string)
}

// Sink receives notifications.
type Sink interface {
	Send(n Notification)
}

type fanout struct {
	sinks []Sink
	now   func() time.Time
}

// To returns a Notifier delivering to every sink.
func To(sinks ...Sink) Notifier {
	return &fanout{sinks: sinks, now: time.Now}
}

func (f *fanout) Success(userID, msg string) { f.send(userID, LevelSuccess, msg) }

func (f *fanout) Error(userID, msg string) { f.send(userID, LevelError, msg) }

func (f *fanout) send(userID string, level Level, msg string) {
	n := Notification{UserID: userID, Level: level, Message: msg, At: f.now().UTC()}
	for _, s := range f.sinks {
		s.Send(n)
	}
}

// LogSink writes notifications to logrus.
type LogSink struct {
	Logger *log.Logger
}

func (l LogSink) Send(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	entry := logger.WithFields(log.Fields{"user": n.UserID, "level": n.Level})
	if n.Level == LevelError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}
