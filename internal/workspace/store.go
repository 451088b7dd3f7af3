// Package workspace keeps the UI state of each browser session: the pending
// file, the question, the last answer, request states and notifications.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/eduquery/eduquery/internal/domain"
	"github.com/eduquery/eduquery/internal/notify"
	"github.com/eduquery/eduquery/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is what both flows need from the answering service
type Backend interface {
	service.Uploader
	service.Asker
}

// Workspace is the state owned by one browser session
type Workspace struct {
	ID        string
	CreatedAt time.Time

	Upload  *service.UploadFlow
	Query   *service.QueryFlow
	Notices *notify.Center

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the workspace was last used
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// Options configures a Store
type Options struct {
	IdleTTL      time.Duration
	DismissAfter time.Duration
	Buffer       int
}

// Store holds workspaces in memory and evicts idle ones
type Store struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewStore creates a workspace store
func NewStore(backend Backend, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:    backend,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Create creates a new workspace
func (s *Store) Create() *Workspace {
	now := s.now()
	id := uuid.New().String()
	logger := s.logger.With(zap.String("workspace", id))
	notices := notify.NewCenter(s.opts.DismissAfter, s.opts.Buffer, logger)

	ws := &Workspace{
		ID:        id,
		CreatedAt: now,
		Upload:    service.NewUploadFlow(s.backend, notices, logger),
		Query:     service.NewQueryFlow(s.backend, notices, logger),
		Notices:   notices,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.workspaces[id] = ws
	s.mu.Unlock()

	logger.Debug("Workspace created")
	return ws
}

// Get returns the workspace with the given ID and marks it used
func (s *Store) Get(id string) (*Workspace, bool) {
	s.mu.Lock()
	ws, ok := s.workspaces[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	ws.touch(s.now())
	return ws, true
}

// GetOrCreate returns the workspace for id, creating a new one when id is
// empty or unknown
func (s *Store) GetOrCreate(id string) (*Workspace, bool) {
	if id != "" {
		if ws, ok := s.Get(id); ok {
			return ws, false
		}
	}
	return s.Create(), true
}

// Delete removes a workspace
func (s *Store) Delete(id string) {
	s.mu.Lock()
	ws, ok := s.workspaces[id]
	delete(s.workspaces, id)
	s.mu.Unlock()
	if ok {
		ws.Notices.Close()
	}
}

// Len returns the number of live workspaces
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// EvictIdle removes workspaces unused for longer than the idle TTL. Workspaces
// with a request in flight are kept.
func (s *Store) EvictIdle() int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	var evicted []*Workspace
	s.mu.Lock()
	for id, ws := range s.workspaces {
		if ws.LastSeen().After(cutoff) || busy(ws) {
			continue
		}
		delete(s.workspaces, id)
		evicted = append(evicted, ws)
	}
	s.mu.Unlock()

	for _, ws := range evicted {
		ws.Notices.Close()
	}
	if len(evicted) > 0 {
		s.logger.Info("Evicted idle workspaces", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run evicts idle workspaces periodically until ctx is done
func (s *Store) Run(ctx context.Context) {
	interval := s.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// Close drops every workspace
func (s *Store) Close() {
	s.mu.Lock()
	all := s.workspaces
	s.workspaces = make(map[string]*Workspace)
	s.mu.Unlock()

	for _, ws := range all {
		ws.Notices.Close()
	}
}

func busy(ws *Workspace) bool {
	return ws.Upload.State() != domain.StateIdle || ws.Query.State() != domain.StateIdle
}
