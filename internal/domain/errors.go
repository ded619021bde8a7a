package domain

import "errors"

var (
	ErrConfiguration = errors.New("configuration error")
	ErrProvider      = errors.New("provider failure")
	ErrContentPolicy = errors.New("content policy rejection")
	ErrStorage       = errors.New("storage failure")
	ErrFetch         = errors.New("fetch failure")
	ErrInvalidInput  = errors.New("invalid input")
)
