package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn means there is no usable credential for the user.
	// Never-logged-in and login-expired look the same to callers; both need a fresh login.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrOAuthRejected covers every callback that must not install a credential
	ErrOAuthRejected = errors.New("oauth callback rejected")

	// ErrStateMismatch means the state matches no live pending request
	ErrStateMismatch = fmt.Errorf("%w: unknown or expired state", ErrOAuthRejected)

	// ErrExchangeFailed means the provider refused the authorization code or could not be reached
	ErrExchangeFailed = fmt.Errorf("%w: code exchange failed", ErrOAuthRejected)

	// ErrRefreshFailed means the provider refused to refresh the access token
	ErrRefreshFailed = errors.New("token refresh failed")
)
