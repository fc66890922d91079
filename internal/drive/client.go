// Package drive is a minimal Google Drive v3 REST client covering the three calls
// the bot needs: multipart create, media download and delete.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/telegramdrive/internal/config"
	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/ratelimit"
)

var (
	// ErrProvider wraps every failed Drive call
	ErrProvider = errors.New("drive call failed")

	// ErrNotFound means the remote file no longer exists
	ErrNotFound = fmt.Errorf("%w: file not found", ErrProvider)

	// ErrRateLimited means Drive throttled the request
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrProvider)
)

// File is the metadata Drive returns for a created file
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// Client handles Drive API operations on behalf of a user credential
type Client struct {
	apiURL      string
	uploadURL   string
	httpClient  *http.Client // base transport; oauth2 adds the bearer header on top
	rateLimiter *ratelimit.RateLimiter
	logger      *zap.Logger
}

// NewClient creates a new Drive client
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		apiURL:     strings.TrimRight(cfg.Google.DriveAPIURL, "/"),
		uploadURL:  strings.TrimRight(cfg.Google.DriveUploadURL, "/"),
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// SetRateLimiter sets the rate limiter for the Drive client
func (c *Client) SetRateLimiter(rl *ratelimit.RateLimiter) {
	c.rateLimiter = rl
}

// SetBaseURLs sets the API and upload base URLs (used for testing)
func (c *Client) SetBaseURLs(apiURL, uploadURL string) {
	c.apiURL = strings.TrimRight(apiURL, "/")
	c.uploadURL = strings.TrimRight(uploadURL, "/")
}

// CreateFile uploads content as a new file named name and returns its id
func (c *Client) CreateFile(ctx context.Context, cred models.CredentialRecord, name, mimeType string, content io.Reader) (string, error) {
	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}

	metadata, err := json.Marshal(map[string]string{"name": name, "mimeType": mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	// Stream the multipart/related body so large files never sit in memory
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	if err := mw.SetBoundary("tgdrive-" + uuid.NewString()); err != nil {
		return "", fmt.Errorf("failed to set multipart boundary: %w", err)
	}

	go func() {
		pw.CloseWithError(writeMultipart(mw, metadata, mimeType, content))
	}()
	defer func() { _ = pr.Close() }()

	endpoint := c.uploadURL + "/files?uploadType=multipart&fields=id,name,mimeType"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := c.do(ctx, ratelimit.OpCreate, cred, req)
	if err != nil {
		return "", err
	}
	defer c.closeBody(resp)

	var created File
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: failed to decode created file: %v", ErrProvider, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: response carried no file id", ErrProvider)
	}

	c.logger.Debug("created file on Drive",
		zap.String("remote_id", created.ID),
		zap.String("name", created.Name),
	)

	return created.ID, nil
}

// GetFile streams the content of fileID into w
func (c *Client) GetFile(ctx context.Context, cred models.CredentialRecord, fileID string, w io.Writer) error {
	endpoint := c.apiURL + "/files/" + url.PathEscape(fileID) + "?alt=media"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(ctx, ratelimit.OpGet, cred, req)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read file content: %v", ErrProvider, err)
	}

	c.logger.Debug("downloaded file from Drive",
		zap.String("remote_id", fileID),
		zap.Int64("bytes", n),
	)

	return nil
}

// DeleteFile permanently deletes fileID
func (c *Client) DeleteFile(ctx context.Context, cred models.CredentialRecord, fileID string) error {
	endpoint := c.apiURL + "/files/" + url.PathEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(ctx, ratelimit.OpDelete, cred, req)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	c.logger.Debug("deleted file on Drive", zap.String("remote_id", fileID))
	return nil
}

// do sends a rate-limited request authorized with cred and maps failures to ErrProvider
func (c *Client) do(ctx context.Context, op string, cred models.CredentialRecord, req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, op); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
	}

	// The token is already fresh; a static source keeps oauth2 from refreshing behind the TokenStore
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(cred.Token()))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.rateLimiter != nil {
			c.rateLimiter.RecordSuccess(op)
		}
		return resp, nil
	}

	defer c.closeBody(resp)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if ratelimit.IsRateLimited(resp.StatusCode, body) {
		if c.rateLimiter != nil {
			c.rateLimiter.HandleRateLimitResponse(op, resp.Header)
		}
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, op)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, op)
	}

	return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrProvider, op, resp.StatusCode, bytes.TrimSpace(body))
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", zap.Error(err))
	}
}

func writeMultipart(mw *multipart.Writer, metadata []byte, mimeType string, content io.Reader) error {
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return err
	}
	if _, err := part.Write(metadata); err != nil {
		return err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}

	return mw.Close()
}
