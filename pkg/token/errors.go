package token

import "errors"

var (
	ErrEmptySecret    = errors.New("signing secret must not be empty")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMissingSubject = errors.New("token subject is missing")
)
