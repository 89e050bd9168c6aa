package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrNoProfiles          = errors.New("no profiles configured")
	ErrProfileExists       = errors.New("profile already exists")
	ErrProfileNameRequired = errors.New("profile name is required")
)

// Errors for client construction and use.
var (
	ErrUploaderRequired = errors.New("uploader is required")
	ErrHistoryDisabled  = errors.New("upload history is disabled")
	ErrEmptyPath        = errors.New("path is required")
	ErrEmptySecret      = errors.New("secret file is empty")
)
