// Package session routes chat and OAuth callback events to the per-user
// credential, upload and file list state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/tempfile"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// Orchestrator is the single entry point for both ingress paths. A user's lock is
// held only while that user's in-memory state changes, never across a network call.
type Orchestrator struct {
	creds     Credentials
	flow      LoginFlow
	uploads   *UploadTracker
	files     *FileIndex
	transport Transport
	provider  StorageProvider
	temp      *tempfile.Dir
	locks     *LockArena
	logger    *zap.Logger
}

// NewOrchestrator wires the components together. Removing a credential also
// cancels the user's pending upload and forgets their file list.
func NewOrchestrator(
	creds Credentials,
	flow LoginFlow,
	uploads *UploadTracker,
	files *FileIndex,
	transport Transport,
	provider StorageProvider,
	temp *tempfile.Dir,
	log *zap.Logger,
) *Orchestrator {
	creds.OnRemove(uploads.Cancel)
	creds.OnRemove(files.Drop)

	return &Orchestrator{
		creds:     creds,
		flow:      flow,
		uploads:   uploads,
		files:     files,
		transport: transport,
		provider:  provider,
		temp:      temp,
		locks:     NewLockArena(),
		logger:    log,
	}
}

// HandleUpdate processes one chat update. Every failure ends as a reply and a log
// line; nothing is returned to the update loop.
func (o *Orchestrator) HandleUpdate(ctx context.Context, u Update) {
	o.logger.Debug("handling update",
		logger.UserID(int64(u.UserID)),
		zap.Stringer("kind", u.Kind),
		zap.String("command", u.Command),
	)

	switch u.Kind {
	case KindCommand:
		o.handleCommand(ctx, u)
	case KindFile:
		o.handleFile(ctx, u)
	case KindText:
		o.handleText(ctx, u)
	default:
		o.logger.Warn("ignoring update of unknown kind", logger.UserID(int64(u.UserID)))
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, u Update) {
	switch strings.ToLower(u.Command) {
	case "start":
		o.reply(ctx, u.UserID, msgWelcome)
	case "menu", "help":
		o.reply(ctx, u.UserID, msgMenu)
	case "login":
		o.login(ctx, u.UserID)
	case "auth":
		o.authCode(ctx, u.UserID, u.Args)
	case "logout":
		o.logout(ctx, u.UserID)
	case "list":
		o.list(ctx, u.UserID)
	case "get":
		o.getFile(ctx, u.UserID, u.Args)
	case "delete":
		o.deleteFile(ctx, u.UserID, u.Args)
	default:
		o.reply(ctx, u.UserID, msgUnknownCommand)
	}
}

// OnOAuthCallback redeems an authorization code delivered by the HTTP redirect.
// Errors are auth.ErrStateMismatch or auth.ErrExchangeFailed; no state changes on either.
// A failed chat notification does not fail the callback.
func (o *Orchestrator) OnOAuthCallback(ctx context.Context, code, state string) error {
	userID, rec, err := o.flow.CompleteLogin(ctx, code, state)
	if err != nil {
		return err
	}

	unlock := o.locks.Lock(userID)
	o.creds.Put(userID, rec)
	unlock()

	if err := o.transport.SendText(ctx, userID, msgLoginSuccess); err != nil {
		o.logger.Warn("credential installed but login notification failed",
			logger.UserID(int64(userID)),
			zap.Error(err),
		)
	}
	return nil
}

func (o *Orchestrator) login(ctx context.Context, userID models.UserID) {
	authURL, err := o.flow.BeginLogin(ctx, userID)
	if err != nil {
		o.logger.Error("failed to begin login", logger.UserID(int64(userID)), zap.Error(err))
		o.reply(ctx, userID, msgLoginFailed)
		return
	}
	o.reply(ctx, userID, fmt.Sprintf(msgLoginURL, authURL))
}

// authCode completes a login with a code the user pasted into the chat
func (o *Orchestrator) authCode(ctx context.Context, userID models.UserID, args []string) {
	if len(args) == 0 {
		o.reply(ctx, userID, msgAuthUsage)
		return
	}

	rec, err := o.flow.CompleteLoginForUser(ctx, userID, args[0])
	if err != nil {
		o.logger.Info("manual login rejected", logger.UserID(int64(userID)), zap.Error(err))
		o.reply(ctx, userID, msgAuthFailed)
		return
	}

	unlock := o.locks.Lock(userID)
	o.creds.Put(userID, rec)
	unlock()

	o.reply(ctx, userID, msgLoginSuccess)
}

// logout forgets the credential, the pending upload and the file list.
// The files themselves stay on Drive.
func (o *Orchestrator) logout(ctx context.Context, userID models.UserID) {
	unlock := o.locks.Lock(userID)
	existed := o.creds.Remove(userID)
	o.flow.Cancel(userID)
	unlock()

	if !existed {
		o.reply(ctx, userID, msgLogoutNoLogin)
		return
	}

	o.logger.Info("user logged out", logger.UserID(int64(userID)))
	o.reply(ctx, userID, msgLogoutSuccess)
}

func (o *Orchestrator) list(ctx context.Context, userID models.UserID) {
	if _, ok := o.requireLogin(ctx, userID); !ok {
		return
	}

	files := o.files.List(userID)
	if len(files) == 0 {
		o.reply(ctx, userID, msgNoFiles)
		return
	}

	var b strings.Builder
	b.WriteString(msgListHead)
	for _, f := range files {
		fmt.Fprintf(&b, msgListEntry, f.Position, f.DisplayName, f.MimeType)
	}
	b.WriteString(msgListFoot)

	o.reply(ctx, userID, b.String())
}

func (o *Orchestrator) getFile(ctx context.Context, userID models.UserID, args []string) {
	cred, ok := o.requireLogin(ctx, userID)
	if !ok {
		return
	}

	rec, ok := o.resolvePosition(ctx, userID, args, msgGetUsage)
	if !ok {
		return
	}

	tmp, err := o.temp.Acquire(rec.RemoteID)
	if err != nil {
		o.logger.Error("failed to acquire temp file", logger.UserID(int64(userID)), zap.Error(err))
		o.reply(ctx, userID, msgGetFailed)
		return
	}
	defer o.release(tmp)

	if err := o.provider.GetFile(ctx, cred, rec.RemoteID, tmp); err != nil {
		o.logger.Error("failed to download file from Drive",
			logger.UserID(int64(userID)),
			zap.String("remote_id", rec.RemoteID),
			zap.Error(err),
		)
		o.reply(ctx, userID, msgGetFailed)
		return
	}

	content, err := tmp.Reader()
	if err != nil {
		o.logger.Error("failed to rewind temp file", logger.UserID(int64(userID)), zap.Error(err))
		o.reply(ctx, userID, msgGetFailed)
		return
	}

	if err := o.transport.SendDocument(ctx, userID, rec.DisplayName, content); err != nil {
		o.logger.Error("failed to send document",
			logger.UserID(int64(userID)),
			zap.Error(fmt.Errorf("%w: %w", ErrTransfer, err)),
		)
		o.reply(ctx, userID, msgGetFailed)
	}
}

// deleteFile removes the remote file first and touches the list only after Drive agreed
func (o *Orchestrator) deleteFile(ctx context.Context, userID models.UserID, args []string) {
	cred, ok := o.requireLogin(ctx, userID)
	if !ok {
		return
	}

	rec, ok := o.resolvePosition(ctx, userID, args, msgDeleteUsage)
	if !ok {
		return
	}

	if err := o.provider.DeleteFile(ctx, cred, rec.RemoteID); err != nil {
		o.logger.Error("failed to delete file on Drive",
			logger.UserID(int64(userID)),
			zap.String("remote_id", rec.RemoteID),
			zap.Error(err),
		)
		o.reply(ctx, userID, msgDeleteFailed)
		return
	}

	unlock := o.locks.Lock(userID)
	o.commitDelete(userID, rec)
	unlock()

	o.reply(ctx, userID, fmt.Sprintf(msgDeleteSuccess, rec.DisplayName))
}

// commitDelete must run under the user's lock
func (o *Orchestrator) commitDelete(userID models.UserID, rec models.FileRecord) {
	if current, err := o.files.GetByPosition(userID, rec.Position); err == nil && current.RemoteID == rec.RemoteID {
		_, _ = o.files.RemoveByPosition(userID, rec.Position)
		return
	}

	// The list moved while Drive was deleting
	if _, ok := o.files.RemoveByRemoteID(userID, rec.RemoteID); !ok {
		o.logger.Info("deleted file no longer listed",
			logger.UserID(int64(userID)),
			zap.String("remote_id", rec.RemoteID),
		)
	}
}

func (o *Orchestrator) handleFile(ctx context.Context, u Update) {
	if _, ok := o.requireLogin(ctx, u.UserID); !ok {
		return
	}

	pending, immediate := o.uploads.FileReceived(u.UserID, u.FileHandle, u.FileName, u.MimeType, u.Caption)
	if !immediate {
		o.reply(ctx, u.UserID, fmt.Sprintf(msgAskName, u.FileName))
		return
	}

	o.upload(ctx, pending)
}

func (o *Orchestrator) handleText(ctx context.Context, u Update) {
	pending, err := o.uploads.NameReceived(u.UserID, u.Text)
	switch {
	case errors.Is(err, ErrNoPendingUpload):
		o.reply(ctx, u.UserID, msgNoPending)
		return
	case errors.Is(err, ErrEmptyName):
		o.reply(ctx, u.UserID, msgEmptyName)
		return
	}

	o.upload(ctx, pending)
}

// upload copies the chat file into a scoped temp file, sends it to Drive and
// records it. The temp file is released on every path.
func (o *Orchestrator) upload(ctx context.Context, p models.PendingUpload) {
	log := o.logger.With(
		logger.UserID(int64(p.UserID)),
		zap.String("upload_id", p.ID.String()),
		zap.String("file_handle", p.FileHandle),
	)

	// The login may have lapsed while the file waited for a name
	cred, ok := o.requireLogin(ctx, p.UserID)
	if !ok {
		return
	}

	tmp, err := o.temp.Acquire(p.FileHandle)
	if err != nil {
		log.Error("failed to acquire temp file", zap.Error(err))
		o.reply(ctx, p.UserID, msgUploadFailed)
		return
	}
	defer o.release(tmp)

	if err := o.transport.Download(ctx, p.FileHandle, tmp); err != nil {
		log.Error("failed to download chat file", zap.Error(fmt.Errorf("%w: %w", ErrTransfer, err)))
		o.reply(ctx, p.UserID, msgUploadFailed)
		return
	}

	content, err := tmp.Reader()
	if err != nil {
		log.Error("failed to rewind temp file", zap.Error(err))
		o.reply(ctx, p.UserID, msgUploadFailed)
		return
	}

	remoteID, err := o.provider.CreateFile(ctx, cred, p.DesiredName, p.MimeType, content)
	if err != nil {
		log.Error("failed to upload file to Drive", zap.Error(err))
		o.reply(ctx, p.UserID, msgUploadFailed)
		return
	}

	unlock := o.locks.Lock(p.UserID)
	// A logout during the transfer already dropped the list; do not start a new one
	if o.creds.Has(p.UserID) {
		o.files.Append(p.UserID, models.FileRecord{
			RemoteID:    remoteID,
			DisplayName: p.DesiredName,
			MimeType:    p.MimeType,
		})
	} else {
		log.Info("user logged out during upload, file not listed", zap.String("remote_id", remoteID))
	}
	unlock()

	log.Info("file uploaded",
		zap.String("remote_id", remoteID),
		zap.String("name", p.DesiredName),
	)
	o.reply(ctx, p.UserID, fmt.Sprintf(msgUploadSuccess, p.DesiredName))
}

// requireLogin returns a usable credential or tells the user to log in
func (o *Orchestrator) requireLogin(ctx context.Context, userID models.UserID) (models.CredentialRecord, bool) {
	cred, err := o.creds.Get(ctx, userID)
	if err != nil {
		o.reply(ctx, userID, msgNotLoggedIn)
		return models.CredentialRecord{}, false
	}
	return cred, true
}

// resolvePosition validates a positional argument and looks the entry up
func (o *Orchestrator) resolvePosition(ctx context.Context, userID models.UserID, args []string, usage string) (models.FileRecord, bool) {
	pos, err := ParsePosition(args)
	switch {
	case errors.Is(err, ErrMissingArgument):
		o.reply(ctx, userID, usage)
		return models.FileRecord{}, false
	case errors.Is(err, ErrInvalidPosition):
		o.reply(ctx, userID, msgNotANumber)
		return models.FileRecord{}, false
	}

	rec, err := o.files.GetByPosition(userID, pos)
	if err != nil {
		o.reply(ctx, userID, msgInvalidNumber)
		return models.FileRecord{}, false
	}
	return rec, true
}

// ParsePosition reads the 1-based position from a command's arguments
func ParsePosition(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrMissingArgument
	}
	pos, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, ErrInvalidPosition
	}
	return pos, nil
}

func (o *Orchestrator) release(tmp *tempfile.File) {
	if err := tmp.Release(); err != nil {
		o.logger.Warn("failed to release temp file", zap.String("path", tmp.Name()), zap.Error(err))
	}
}

func (o *Orchestrator) reply(ctx context.Context, userID models.UserID, text string) {
	if err := o.transport.SendText(ctx, userID, text); err != nil {
		o.logger.Error("failed to send reply",
			logger.UserID(int64(userID)),
			zap.Error(fmt.Errorf("%w: %w", ErrTransfer, err)),
		)
	}
}
