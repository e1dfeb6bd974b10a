// Package notify carries user-facing notices (form-level errors, push
// messages) to whatever presents them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one message for the user.
type Notice struct {
	Level Level
	Title string
	Body  string
}

// Notifier receives notices. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) {
	if f != nil {
		f(ctx, n)
	}
}

// Nop discards every notice.
var Nop Notifier = Func(nil)

// LogNotifier writes notices to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) {
	fields := []zap.Field{zap.String("title", n.Title), zap.String("body", n.Body)}
	if n.Level == LevelError {
		l.logger.Error("notice", fields...)
		return
	}
	l.logger.Info("notice", append(fields, zap.String("level", string(n.Level)))...)
}

// Recorder keeps notices in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type pushPayload struct {
	Notification *struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
}

// ParsePush decodes a push message of the form
// {"notification":{"title":...,"body":...}} into an info Notice.
func ParsePush(data []byte) (Notice, error) {
	var payload pushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Notice{}, fmt.Errorf("notify: decode push: %w", err)
	}
	if payload.Notification == nil {
		return Notice{}, errors.New("notify: push payload has no notification")
	}
	title := strings.TrimSpace(payload.Notification.Title)
	body := strings.TrimSpace(payload.Notification.Body)
	if title == "" && body == "" {
		return Notice{}, errors.New("notify: push notification is empty")
	}
	return Notice{Level: LevelInfo, Title: title, Body: body}, nil
}

// Push decodes data and forwards it to sink.
func Push(ctx context.Context, sink Notifier, data []byte) error {
	notice, err := ParsePush(data)
	if err != nil {
		return err
	}
	if sink != nil {
		sink.Notify(ctx, notice)
	}
	return nil
}
