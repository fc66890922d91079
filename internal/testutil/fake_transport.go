package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// SentDocument is a document delivered through FakeTransport.
type SentDocument struct {
	UserID  models.UserID
	Name    string
	Content []byte
}

// FakeTransport is an in-memory chat transport. Files registered with AddFile
// can be downloaded by handle; replies are recorded per user.
type FakeTransport struct {
	mu        sync.Mutex
	files     map[string][]byte
	texts     map[models.UserID][]string
	documents []SentDocument
	downloads []string
	targets   []string

	failSend     bool
	failDownload bool
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		files: make(map[string][]byte),
		texts: make(map[models.UserID][]string),
	}
}

// AddFile makes content downloadable under handle.
func (ft *FakeTransport) AddFile(handle string, content []byte) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.files[handle] = content
}

// SendText records a text reply.
func (ft *FakeTransport) SendText(_ context.Context, userID models.UserID, text string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.failSend {
		return errors.New("telegram: send failed")
	}
	ft.texts[userID] = append(ft.texts[userID], text)
	return nil
}

// SendDocument records a document reply.
func (ft *FakeTransport) SendDocument(_ context.Context, userID models.UserID, name string, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.failSend {
		return errors.New("telegram: send failed")
	}
	ft.documents = append(ft.documents, SentDocument{UserID: userID, Name: name, Content: content})
	return nil
}

// Download copies the file registered under handle into w.
func (ft *FakeTransport) Download(_ context.Context, handle string, w io.Writer) error {
	ft.mu.Lock()
	content, ok := ft.files[handle]
	fail := ft.failDownload
	ft.downloads = append(ft.downloads, handle)
	if named, ok := w.(interface{ Name() string }); ok {
		ft.targets = append(ft.targets, filepath.Base(named.Name()))
	}
	ft.mu.Unlock()

	if fail {
		return errors.New("telegram: download failed")
	}
	if !ok {
		return fmt.Errorf("telegram: unknown file %q", handle)
	}
	_, err := io.Copy(w, bytes.NewReader(content))
	return err
}

// Texts returns every text sent to userID.
func (ft *FakeTransport) Texts(userID models.UserID) []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.texts[userID]...)
}

// LastText returns the most recent text sent to userID, or "".
func (ft *FakeTransport) LastText(userID models.UserID) string {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	texts := ft.texts[userID]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Documents returns every document sent.
func (ft *FakeTransport) Documents() []SentDocument {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]SentDocument(nil), ft.documents...)
}

// Downloads returns the handles requested, in order.
func (ft *FakeTransport) Downloads() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.downloads...)
}

// DownloadTargets returns the base names of the files downloads were written to.
func (ft *FakeTransport) DownloadTargets() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.targets...)
}

// SetFailSend makes SendText and SendDocument fail.
func (ft *FakeTransport) SetFailSend(fail bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.failSend = fail
}

// SetFailDownload makes Download fail.
func (ft *FakeTransport) SetFailDownload(fail bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.failDownload = fail
}
