package domain

import "errors"

var (
	ErrNotFound       = errors.New("no such file or directory")
	ErrExists         = errors.New("file exists")
	ErrNotEmpty       = errors.New("directory not empty")
	ErrInvalidName    = errors.New("invalid name")
	ErrNoSpace        = errors.New("no space left on device")
	ErrDevice         = errors.New("block device failure")
	ErrInvalidAddress = errors.New("invalid block address")
)
