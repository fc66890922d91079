// Package oauth serves the Google OAuth redirect and the health check.
package oauth

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/auth"
)

// CallbackHandler redeems an authorization code delivered by the redirect
type CallbackHandler interface {
	OnOAuthCallback(ctx context.Context, code, state string) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	callback CallbackHandler
	logger   *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(callback CallbackHandler, logger *zap.Logger) *Handlers {
	return &Handlers{
		callback: callback,
		logger:   logger,
	}
}

// HealthHandler handles health check requests
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}

// OAuthCallbackHandler handles GET /oauth2callback?code=...&state=...
func (h *Handlers) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Google sends error=access_denied when the user declines consent
	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("oauth error from google", zap.String("error", errParam))
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Authentication failed",
			Message: "Google returned an error: " + errParam,
		})
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.logger.Warn("oauth callback missing parameters",
			zap.Bool("has_code", code != ""),
			zap.Bool("has_state", state != ""),
		)
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Invalid request",
			Message: "Missing required parameters (code or state).",
		})
		return
	}

	err := h.callback.OnOAuthCallback(r.Context(), code, state)
	switch {
	case err == nil:
		h.renderPage(w, http.StatusOK, page{
			Success: true,
			Title:   "Login successful!",
			Message: "Your Google Drive is connected. You can close this window and return to Telegram.",
		})
	case errors.Is(err, auth.ErrStateMismatch):
		h.logger.Warn("rejected oauth callback", zap.Error(err))
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Authentication failed",
			Message: "This login link is unknown or has expired. Send /login to the bot to get a new one.",
		})
	default:
		h.logger.Error("failed to complete oauth callback", zap.Error(err))
		h.renderPage(w, http.StatusInternalServerError, page{
			Title:   "Authentication failed",
			Message: "Failed to complete authentication. Please try again.",
		})
	}
}

type page struct {
	Success bool
	Title   string
	Message string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f1f3f4;
        }
        .card {
            background: white;
            padding: 3rem;
            border-radius: 8px;
            box-shadow: 0 2px 12px rgba(0,0,0,0.15);
            text-align: center;
            max-width: 420px;
        }
        .icon {
            width: 72px;
            height: 72px;
            margin: 0 auto 1rem;
            border-radius: 50%;
            color: white;
            font-size: 40px;
            line-height: 72px;
        }
        .ok { background: #1e8e3e; }
        .fail { background: #d93025; }
        h1 { color: #202124; margin: 0 0 1rem; }
        p { color: #5f6368; margin: 0; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="card">
        {{if .Success}}<div class="icon ok">&#10003;</div>{{else}}<div class="icon fail">&#10007;</div>{{end}}
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

// renderPage writes an HTML result page with status
func (h *Handlers) renderPage(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := pageTemplate.Execute(w, p); err != nil {
		h.logger.Error("failed to write response page", zap.Error(err))
	}
}
