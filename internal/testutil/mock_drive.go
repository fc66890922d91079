package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

// StoredFile is a file held by MockDriveServer.
type StoredFile struct {
	Name     string
	MimeType string
	Content  []byte
}

// MockDriveServer represents a mock Google Drive v3 API for testing.
// It implements multipart upload, alt=media download and delete.
type MockDriveServer struct {
	Server *httptest.Server

	createCalls atomic.Int32
	getCalls    atomic.Int32
	deleteCalls atomic.Int32

	failCreate atomic.Bool
	failGet    atomic.Bool
	failDelete atomic.Bool

	mu     sync.Mutex
	files  map[string]StoredFile
	nextID int
}

// NewMockDriveServer creates a new mock Drive server.
func NewMockDriveServer() *MockDriveServer {
	mds := &MockDriveServer{files: make(map[string]StoredFile)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/drive/v3/files", mds.handleCreate)
	mux.HandleFunc("GET /drive/v3/files/{id}", mds.handleGet)
	mux.HandleFunc("DELETE /drive/v3/files/{id}", mds.handleDelete)

	mds.Server = httptest.NewServer(authorized(mux))
	return mds
}

func authorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": 401, "message": "Request is missing required authentication credential."},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (mds *MockDriveServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	mds.createCalls.Add(1)

	if mds.failCreate.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"code": 500, "message": "Backend Error"},
		})
		return
	}

	if r.URL.Query().Get("uploadType") != "multipart" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/related" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reader := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := reader.NextPart()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var meta struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mediaPart, err := reader.NextPart()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(mediaPart)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mds.mu.Lock()
	mds.nextID++
	id := fmt.Sprintf("drive_file_%d", mds.nextID)
	mds.files[id] = StoredFile{Name: meta.Name, MimeType: meta.MimeType, Content: content}
	mds.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"id":       id,
		"name":     meta.Name,
		"mimeType": meta.MimeType,
	})
}

func (mds *MockDriveServer) handleGet(w http.ResponseWriter, r *http.Request) {
	mds.getCalls.Add(1)

	if mds.failGet.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("alt") != "media" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mds.mu.Lock()
	f, ok := mds.files[r.PathValue("id")]
	mds.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": 404, "message": "File not found"},
		})
		return
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

func (mds *MockDriveServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	mds.deleteCalls.Add(1)

	if mds.failDelete.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	mds.mu.Lock()
	_, ok := mds.files[id]
	delete(mds.files, id)
	mds.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": 404, "message": "File not found"},
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Close closes the mock server.
func (mds *MockDriveServer) Close() {
	if mds.Server != nil {
		mds.Server.Close()
	}
}

// APIURL is the metadata/media base URL.
func (mds *MockDriveServer) APIURL() string {
	return mds.Server.URL + "/drive/v3"
}

// UploadURL is the upload base URL.
func (mds *MockDriveServer) UploadURL() string {
	return mds.Server.URL + "/upload/drive/v3"
}

// Seed stores a file directly and returns its id.
func (mds *MockDriveServer) Seed(name, mimeType string, content []byte) string {
	mds.mu.Lock()
	defer mds.mu.Unlock()

	mds.nextID++
	id := fmt.Sprintf("drive_file_%d", mds.nextID)
	mds.files[id] = StoredFile{Name: name, MimeType: mimeType, Content: content}
	return id
}

// File returns a stored file.
func (mds *MockDriveServer) File(id string) (StoredFile, bool) {
	mds.mu.Lock()
	defer mds.mu.Unlock()

	f, ok := mds.files[id]
	return f, ok
}

// FileCount returns the number of stored files.
func (mds *MockDriveServer) FileCount() int {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	return len(mds.files)
}

// CreateCalls, GetCalls and DeleteCalls count requests per operation.
func (mds *MockDriveServer) CreateCalls() int { return int(mds.createCalls.Load()) }
func (mds *MockDriveServer) GetCalls() int    { return int(mds.getCalls.Load()) }
func (mds *MockDriveServer) DeleteCalls() int { return int(mds.deleteCalls.Load()) }

// TotalCalls sums all operation counters.
func (mds *MockDriveServer) TotalCalls() int {
	return mds.CreateCalls() + mds.GetCalls() + mds.DeleteCalls()
}

// SetFailCreate, SetFailGet and SetFailDelete force 500 responses.
func (mds *MockDriveServer) SetFailCreate(fail bool) { mds.failCreate.Store(fail) }
func (mds *MockDriveServer) SetFailGet(fail bool)    { mds.failGet.Store(fail) }
func (mds *MockDriveServer) SetFailDelete(fail bool) { mds.failDelete.Store(fail) }
