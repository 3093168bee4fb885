package core

import "errors"

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrStoreClosed          = errors.New("config store closed")
	ErrPortInUse            = errors.New("listen port already in use")
	ErrAlreadyAuthenticated = errors.New("connection already authenticated")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrUnknownSection       = errors.New("unknown config section")
)
