package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	"querai-chat/pkg/logger"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notifier surfaces short user-facing messages.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// LogNotifier writes notices to the process log.
type LogNotifier struct{}

func (LogNotifier) Info(msg string) {
	logger.WithFields(logrus.Fields{"notice": true}).Info(msg)
}

func (LogNotifier) Error(msg string) {
	logger.WithFields(logrus.Fields{"notice": true}).Error(msg)
}

// MaxNotices bounds what a Recorder holds between drains; older notices are
// dropped first.
const MaxNotices = 50

// Recorder keeps the latest notices in memory and forwards to an optional
// next notifier. Views drain it with Drain.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	next    Notifier
}

func NewRecorder(next Notifier) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Info(msg string) {
	r.add(LevelInfo, msg)
	if r.next != nil {
		r.next.Info(msg)
	}
}

func (r *Recorder) Error(msg string) {
	r.add(LevelError, msg)
	if r.next != nil {
		r.next.Error(msg)
	}
}

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: msg})
	if over := len(r.notices) - MaxNotices; over > 0 {
		r.notices = append([]Notice(nil), r.notices[over:]...)
	}
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns and forgets the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}
