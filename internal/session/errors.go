package session

import "errors"

var (
	// ErrNoPendingUpload means a name arrived while no file is waiting for one
	ErrNoPendingUpload = errors.New("no pending upload")

	// ErrEmptyName means the supplied file name trimmed to nothing; the upload keeps waiting
	ErrEmptyName = errors.New("file name is empty")

	// ErrOutOfRange means a position does not address an entry of the file list
	ErrOutOfRange = errors.New("position out of range")

	// ErrMissingArgument means a positional command came without its number
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidPosition means the argument is not an integer
	ErrInvalidPosition = errors.New("position must be a number")

	// ErrTransfer wraps chat transport download and send failures
	ErrTransfer = errors.New("chat transfer failed")
)
