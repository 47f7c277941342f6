package auth

import "github.com/pkg/errors"

var (
	ErrAuthenticationRejected = errors.New("authentication rejected")
	ErrRegistrationRejected   = errors.New("registration rejected")
	ErrRefreshRejected        = errors.New("refresh rejected")
	ErrSessionReplaced        = errors.New("session changed during refresh")
	ErrInvalidToken           = errors.New("invalid token")
	ErrLogoutFailed           = errors.New("remote logout failed")
	ErrPasswordMismatch       = errors.New("passwords do not match")
)
