// Package exchange runs the question/answer round trip against the backend
// and records both sides in the session store.
package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"querai-chat/internal/backend"
	"querai-chat/internal/model"
	"querai-chat/internal/normalize"
	"querai-chat/internal/notify"
	"querai-chat/internal/state"
	"querai-chat/pkg/logger"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrNoActiveSession = errors.New("no active chat with a data source")
	// ErrBusy is returned while a previous round trip is outstanding.
	ErrBusy = errors.New("a question is already being answered")
)

const (
	msgNoActiveSession = "Please start a chat with a data source selected."
	msgBackendOffline  = "Backend is offline, please retry."
	msgRequestFailed   = "Request failed."
	msgTransportFailed = "Request failed. Please try again."

	titleWords   = 8
	titleTimeout = 10 * time.Second
)

type Sender interface {
	SendMessage(ctx context.Context, chatID, userID, message string) ([]byte, error)
}

type Titler interface {
	UpdateTitle(ctx context.Context, ownerID, chatID, title string) error
}

type Publisher interface {
	Publish()
}

type Driver struct {
	store    *state.Store
	sender   Sender
	titles   Titler
	bus      Publisher
	notifier notify.Notifier
	ownerID  string

	loading atomic.Bool

	mu     sync.Mutex
	titled map[string]bool
	tasks  sync.WaitGroup
}

func NewDriver(store *state.Store, sender Sender, titles Titler, bus Publisher, notifier notify.Notifier, ownerID string) *Driver {
	return &Driver{
		store:    store,
		sender:   sender,
		titles:   titles,
		bus:      bus,
		notifier: notifier,
		ownerID:  ownerID,
		titled:   make(map[string]bool),
	}
}

// Loading reports whether a round trip is outstanding. Interfaces disable
// submission while it is set.
func (d *Driver) Loading() bool {
	return d.loading.Load()
}

// SendQuestion appends the question, asks the backend and appends the
// answer. A failed round trip still appends an assistant message
// describing the failure, so every accepted call grows the log by two. The
// returned message is the appended assistant message; the error is nil
// when the backend answered.
func (d *Driver) SendQuestion(ctx context.Context, text string) (model.Message, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return model.Message{}, ErrEmptyQuestion
	}

	chatID := d.store.ActiveChatID()
	if chatID == "" || d.store.ActiveDataSourceID() == "" {
		d.notifier.Error(msgNoActiveSession)
		return model.Message{}, ErrNoActiveSession
	}

	if !d.loading.CompareAndSwap(false, true) {
		return model.Message{}, ErrBusy
	}
	defer d.loading.Store(false)

	log := logger.WithFields(logrus.Fields{"chat_id": chatID, "owner_id": d.ownerID})

	first := d.store.Len() == 0
	d.store.AppendMessage(model.UserMessage(question))

	body, err := d.sender.SendMessage(ctx, chatID, d.ownerID, question)

	// The user moved on while the call was outstanding; the result belongs
	// to a chat that is no longer shown.
	if d.store.ActiveChatID() != chatID {
		log.Info("dropping answer for inactive chat")
		return model.Message{}, err
	}

	if err != nil {
		log.Warnf("message send failed: %v", err)
		reply := failureMessage(err)
		d.store.AppendMessage(reply)
		notice := backend.DetailOf(err)
		if notice == "" {
			notice = msgBackendOffline
		}
		d.notifier.Error(notice)
		return reply, err
	}

	reply := normalize.Response(body)
	d.store.AppendMessage(reply)

	if first {
		d.autoTitle(chatID, question)
	}
	return reply, nil
}

func failureMessage(err error) model.Message {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		explanation := apiErr.Detail
		if explanation == "" {
			explanation = msgRequestFailed
		}
		return normalize.Failure(explanation, apiErr.Detail)
	}
	return normalize.Failure(msgTransportFailed, err.Error())
}

// Title derives a chat title from the first words of a question.
func Title(question string) string {
	words := strings.Fields(question)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ")
}

// autoTitle persists a title for chatID in the background, once. Its
// outcome never reaches the caller of SendQuestion.
func (d *Driver) autoTitle(chatID, question string) {
	d.mu.Lock()
	if d.titled[chatID] {
		d.mu.Unlock()
		return
	}
	d.titled[chatID] = true
	d.mu.Unlock()

	title := Title(question)
	if title == "" || d.titles == nil {
		return
	}

	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("auto-title panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()

		log := logger.WithFields(logrus.Fields{"chat_id": chatID, "title": title})
		if err := d.titles.UpdateTitle(ctx, d.ownerID, chatID, title); err != nil {
			log.Warnf("auto-title failed: %v", err)
			return
		}
		log.Debug("chat titled")
		d.bus.Publish()
	}()
}

// Wait blocks until background title updates have finished.
func (d *Driver) Wait() {
	d.tasks.Wait()
}
