package model

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecode means the source image could not be read.
	ErrDecode = errors.New("image decode failed")
	// ErrIO means a rendered image could not be written.
	ErrIO = errors.New("image write failed")
)
