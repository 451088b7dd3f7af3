package service

import (
	"context"
	"sync"

	"github.com/eduquery/eduquery/internal/domain"
	"github.com/eduquery/eduquery/internal/notify"
	"go.uber.org/zap"
)

// Upload flow messages
const (
	MsgNoFileSelected = "Please select a PDF first!"
	MsgUploadSuccess  = "PDF uploaded successfully!"
	MsgUploadFailed   = "Upload failed!"
)

// Uploader sends a document to the ingestion endpoint
type Uploader interface {
	Upload(ctx context.Context, file *domain.PendingFile) (*domain.UploadAck, error)
}

// UploadFlow holds the selected file and submits it to the backend
type UploadFlow struct {
	uploader Uploader
	notifier notify.Notifier
	logger   *zap.Logger
	gate     gate

	mu      sync.Mutex
	pending *domain.PendingFile
}

// NewUploadFlow creates an upload flow
func NewUploadFlow(uploader Uploader, notifier notify.Notifier, logger *zap.Logger) *UploadFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadFlow{
		uploader: uploader,
		notifier: notifier,
		logger:   logger,
	}
}

// Select replaces the pending file
func (f *UploadFlow) Select(file *domain.PendingFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = file
}

// Clear drops the pending file
func (f *UploadFlow) Clear() {
	f.Select(nil)
}

// Pending returns the selected file, or nil
func (f *UploadFlow) Pending() *domain.PendingFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// State reports whether an upload is in flight
func (f *UploadFlow) State() domain.RequestState {
	return f.gate.state()
}

// Submit uploads the pending file. While an upload is in flight further calls
// return domain.ErrInFlight and do nothing else. onComplete runs after a
// successful upload only.
func (f *UploadFlow) Submit(ctx context.Context, onComplete func()) error {
	if !f.gate.tryAcquire() {
		return domain.ErrInFlight
	}
	defer f.gate.release()

	file := f.Pending()
	if file == nil {
		err := &domain.ValidationError{Field: "file", Message: MsgNoFileSelected}
		f.notifier.Notify(notify.KindWarning, err.Message)
		return err
	}

	ack, err := f.uploader.Upload(ctx, file)
	if err != nil {
		f.logger.Error("Upload failed", zap.String("filename", file.Name), zap.Error(err))
		f.notifier.Notify(notify.KindError, domain.NotificationMessage(err, MsgUploadFailed))
		return err
	}

	f.mu.Lock()
	// A file selected while the upload was running stays selected.
	if f.pending == file {
		f.pending = nil
	}
	f.mu.Unlock()

	f.logger.Info("Upload succeeded",
		zap.String("filename", file.Name),
		zap.String("type", file.Type()),
		zap.Int64("size", file.Size),
		zap.Int("status", ack.Status),
	)
	f.notifier.Notify(notify.KindSuccess, MsgUploadSuccess)
	if onComplete != nil {
		onComplete()
	}
	return nil
}
