package service

import (
	"context"
	"strings"
	"sync"

	"github.com/eduquery/eduquery/internal/domain"
	"github.com/eduquery/eduquery/internal/notify"
	"go.uber.org/zap"
)

// Query flow messages
const (
	MsgEmptyQuestion = "Please enter a question!"
	MsgAnswerReady   = "Answer generated!"
	MsgQueryFailed   = "Query failed!"
)

// Asker sends a question to the query endpoint
type Asker interface {
	Query(ctx context.Context, question string) (*domain.AnswerResult, error)
}

// QueryFlow holds the question text and the last good answer
type QueryFlow struct {
	asker    Asker
	notifier notify.Notifier
	logger   *zap.Logger
	gate     gate

	mu       sync.Mutex
	question string
	result   *domain.AnswerResult
}

// NewQueryFlow creates a query flow
func NewQueryFlow(asker Asker, notifier notify.Notifier, logger *zap.Logger) *QueryFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryFlow{
		asker:    asker,
		notifier: notifier,
		logger:   logger,
	}
}

// SetQuestion updates the question text
func (f *QueryFlow) SetQuestion(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.question = text
}

// Question returns the current question text
func (f *QueryFlow) Question() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.question
}

// Result returns the answer currently displayed, or nil
func (f *QueryFlow) Result() *domain.AnswerResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// State reports whether a query is in flight
func (f *QueryFlow) State() domain.RequestState {
	return f.gate.state()
}

// Submit asks the current question. On success the displayed answer is
// replaced; on failure it is left as it was.
func (f *QueryFlow) Submit(ctx context.Context) (*domain.AnswerResult, error) {
	if !f.gate.tryAcquire() {
		return nil, domain.ErrInFlight
	}
	defer f.gate.release()

	question := f.Question()
	if strings.TrimSpace(question) == "" {
		err := &domain.ValidationError{Field: "question", Message: MsgEmptyQuestion}
		f.notifier.Notify(notify.KindWarning, err.Message)
		return nil, err
	}

	result, err := f.asker.Query(ctx, question)
	if err != nil {
		f.logger.Error("Query failed", zap.Error(err))
		f.notifier.Notify(notify.KindError, domain.NotificationMessage(err, MsgQueryFailed))
		return nil, err
	}

	f.mu.Lock()
	f.result = result
	f.mu.Unlock()

	f.notifier.Notify(notify.KindSuccess, MsgAnswerReady)
	return result, nil
}
