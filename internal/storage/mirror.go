package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

type credentialChange struct {
	rec     models.CredentialRecord
	deleted bool
}

type fileChange struct {
	files   []models.FileRecord
	deleted bool
}

// Mirror forwards state changes to a Backend from a background goroutine.
// Changes to the same user coalesce: only the latest one reaches the backend.
// Failed writes are logged and dropped.
type Mirror struct {
	backend Backend
	logger  *zap.Logger

	mu     sync.Mutex
	creds  map[models.UserID]credentialChange
	files  map[models.UserID]fileChange
	closed bool

	// flushMu keeps batches in order
	flushMu sync.Mutex

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewMirror starts a mirror over backend
func NewMirror(backend Backend, log *zap.Logger) *Mirror {
	m := &Mirror{
		backend: backend,
		logger:  log,
		creds:   make(map[models.UserID]credentialChange),
		files:   make(map[models.UserID]fileChange),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

// SaveCredential queues rec as the credential of userID
func (m *Mirror) SaveCredential(userID models.UserID, rec models.CredentialRecord) {
	m.enqueue(userID, "credential", func() { m.creds[userID] = credentialChange{rec: rec} })
}

// DeleteCredential queues removal of userID's credential
func (m *Mirror) DeleteCredential(userID models.UserID) {
	m.enqueue(userID, "credential", func() { m.creds[userID] = credentialChange{deleted: true} })
}

// SaveFiles queues files as userID's file list
func (m *Mirror) SaveFiles(userID models.UserID, files []models.FileRecord) {
	files = append([]models.FileRecord(nil), files...)
	m.enqueue(userID, "file list", func() { m.files[userID] = fileChange{files: files} })
}

// DeleteFiles queues removal of userID's file list
func (m *Mirror) DeleteFiles(userID models.UserID) {
	m.enqueue(userID, "file list", func() { m.files[userID] = fileChange{deleted: true} })
}

// enqueue applies change under m.mu. After Close the change is dropped with a warning.
func (m *Mirror) enqueue(userID models.UserID, kind string, change func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Warn("mirror closed, change not persisted",
			logger.UserID(int64(userID)),
			zap.String("kind", kind),
		)
		return
	}
	change()
	m.mu.Unlock()
	m.signal()
}

// Pending reports how many user changes are waiting to be written
func (m *Mirror) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds) + len(m.files)
}

// Flush writes every queued change now. Errors are logged and also returned joined.
func (m *Mirror) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	creds, files := m.creds, m.files
	m.creds = make(map[models.UserID]credentialChange)
	m.files = make(map[models.UserID]fileChange)
	m.mu.Unlock()

	var errs []error
	for userID, c := range creds {
		var err error
		if c.deleted {
			err = m.backend.DeleteCredential(ctx, userID)
		} else {
			err = m.backend.SaveCredential(ctx, userID, c.rec)
		}
		if err != nil {
			m.logger.Warn("failed to persist credential", logger.UserID(int64(userID)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	for userID, c := range files {
		var err error
		if c.deleted {
			err = m.backend.DeleteFiles(ctx, userID)
		} else {
			err = m.backend.SaveFiles(ctx, userID, c.files)
		}
		if err != nil {
			m.logger.Warn("failed to persist file list", logger.UserID(int64(userID)), zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close stops accepting changes, stops the background writer, flushes what is
// left and closes the backend. Only the first call does the work.
func (m *Mirror) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		close(m.done)
		<-m.stopped

		flushErr := m.Flush(ctx)
		if closeErr := m.backend.Close(); closeErr != nil {
			flushErr = errors.Join(flushErr, closeErr)
		}
		err = flushErr
	})
	return err
}

func (m *Mirror) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.wake:
			_ = m.Flush(context.Background())
		case <-m.done:
			return
		}
	}
}
