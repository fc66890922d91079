package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TelegramMessage is a text or document the bot sent through MockTelegramServer.
type TelegramMessage struct {
	ChatID   int64
	Text     string
	FileName string
	Content  []byte
}

// MockTelegramServer represents a mock Telegram Bot API for testing.
// It answers getMe, getFile, getUpdates, sendMessage and sendDocument, and serves
// file downloads under /file/bot<token>/.
type MockTelegramServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	updates  []json.RawMessage
	nextID   int
	sent     []TelegramMessage
	failSend bool
}

// NewMockTelegramServer creates a new mock Bot API server.
func NewMockTelegramServer() *MockTelegramServer {
	mts := &MockTelegramServer{files: make(map[string][]byte)}
	mts.Server = httptest.NewServer(http.HandlerFunc(mts.route))
	return mts
}

func (mts *MockTelegramServer) route(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot") {
		mts.handleDownload(w, r)
		return
	}

	// /bot<token>/<method>
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/bot"), "/", 2)
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "getMe":
		telegramOK(w, map[string]any{"id": 1, "is_bot": true, "first_name": "Drive", "username": "drive_test_bot"})
	case "getFile":
		mts.handleGetFile(w, r)
	case "getUpdates":
		mts.handleGetUpdates(w)
	case "sendMessage":
		mts.handleSendMessage(w, r)
	case "sendDocument":
		mts.handleSendDocument(w, r)
	default:
		telegramError(w, http.StatusNotFound, "Not Found")
	}
}

func (mts *MockTelegramServer) handleGetFile(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	id := r.FormValue("file_id")

	mts.mu.Lock()
	_, ok := mts.files[id]
	mts.mu.Unlock()
	if !ok {
		telegramError(w, http.StatusBadRequest, "Bad Request: invalid file_id")
		return
	}

	telegramOK(w, map[string]any{"file_id": id, "file_unique_id": id, "file_path": "documents/" + id})
}

func (mts *MockTelegramServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	mts.mu.Lock()
	content, ok := mts.files[id]
	mts.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write(content)
}

func (mts *MockTelegramServer) handleGetUpdates(w http.ResponseWriter) {
	mts.mu.Lock()
	updates := mts.updates
	mts.updates = nil
	mts.mu.Unlock()

	if len(updates) == 0 {
		// Stand-in for long polling so the client does not spin
		time.Sleep(20 * time.Millisecond)
		updates = []json.RawMessage{}
	}
	telegramOK(w, updates)
}

func (mts *MockTelegramServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)

	if mts.record(TelegramMessage{ChatID: chatID, Text: r.FormValue("text")}) {
		telegramError(w, http.StatusForbidden, "Forbidden: bot was blocked by the user")
		return
	}
	telegramOK(w, sentMessage(chatID))
}

func (mts *MockTelegramServer) handleSendDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		telegramError(w, http.StatusBadRequest, "Bad Request: "+err.Error())
		return
	}
	chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)

	file, header, err := r.FormFile("document")
	if err != nil {
		telegramError(w, http.StatusBadRequest, "Bad Request: there is no document in the request")
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	if mts.record(TelegramMessage{ChatID: chatID, FileName: header.Filename, Content: content}) {
		telegramError(w, http.StatusForbidden, "Forbidden: bot was blocked by the user")
		return
	}
	telegramOK(w, sentMessage(chatID))
}

// record stores msg unless sends are failing, and reports whether they are
func (mts *MockTelegramServer) record(msg TelegramMessage) bool {
	mts.mu.Lock()
	defer mts.mu.Unlock()

	if mts.failSend {
		return true
	}
	mts.sent = append(mts.sent, msg)
	return false
}

func sentMessage(chatID int64) map[string]any {
	return map[string]any{
		"message_id": 1,
		"date":       time.Now().Unix(),
		"chat":       map[string]any{"id": chatID, "type": "private"},
	}
}

func telegramOK(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func telegramError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, map[string]any{"ok": false, "error_code": status, "description": description})
}

// Close closes the mock server.
func (mts *MockTelegramServer) Close() {
	if mts.Server != nil {
		mts.Server.Close()
	}
}

// APIEndpoint is the Bot API endpoint format for tgbotapi.
func (mts *MockTelegramServer) APIEndpoint() string {
	return mts.Server.URL + "/bot%s/%s"
}

// FileEndpoint is the file download endpoint format.
func (mts *MockTelegramServer) FileEndpoint() string {
	return mts.Server.URL + "/file/bot%s/%s"
}

// AddFile makes content downloadable under the file handle id.
func (mts *MockTelegramServer) AddFile(id string, content []byte) {
	mts.mu.Lock()
	defer mts.mu.Unlock()
	mts.files[id] = content
}

// QueueUpdate makes the next getUpdates call return update.
// The update must carry an update_id.
func (mts *MockTelegramServer) QueueUpdate(update map[string]any) {
	raw, _ := json.Marshal(update)

	mts.mu.Lock()
	defer mts.mu.Unlock()
	mts.updates = append(mts.updates, raw)
}

// QueueText queues a private text message from userID; a leading "/" makes it a command.
func (mts *MockTelegramServer) QueueText(userID int64, text string) {
	id, message := mts.newMessage(userID)
	message["text"] = text
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		message["entities"] = []map[string]any{{"type": "bot_command", "offset": 0, "length": len(cmd)}}
	}

	mts.QueueUpdate(map[string]any{"update_id": id, "message": message})
}

// QueueDocument queues a document message whose file handle is fileID.
// The content must be registered with AddFile for downloads to succeed.
func (mts *MockTelegramServer) QueueDocument(userID int64, fileID, fileName, mimeType, caption string) {
	id, message := mts.newMessage(userID)
	message["document"] = map[string]any{
		"file_id":        fileID,
		"file_unique_id": "unique-" + fileID,
		"file_name":      fileName,
		"mime_type":      mimeType,
	}
	if caption != "" {
		message["caption"] = caption
	}

	mts.QueueUpdate(map[string]any{"update_id": id, "message": message})
}

// newMessage allocates the next update id; the client drops ids below its offset.
func (mts *MockTelegramServer) newMessage(userID int64) (int, map[string]any) {
	mts.mu.Lock()
	mts.nextID++
	id := mts.nextID
	mts.mu.Unlock()

	return id, map[string]any{
		"message_id": id,
		"date":       time.Now().Unix(),
		"from":       map[string]any{"id": userID, "is_bot": false, "first_name": "User"},
		"chat":       map[string]any{"id": userID, "type": "private"},
	}
}

// Sent returns every message and document sent, in order.
func (mts *MockTelegramServer) Sent() []TelegramMessage {
	mts.mu.Lock()
	defer mts.mu.Unlock()
	return append([]TelegramMessage(nil), mts.sent...)
}

// SetFailSend makes sendMessage and sendDocument fail.
func (mts *MockTelegramServer) SetFailSend(fail bool) {
	mts.mu.Lock()
	defer mts.mu.Unlock()
	mts.failSend = fail
}
