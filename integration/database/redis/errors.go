package redis

import "errors"

// Stable sentinels for connection and health failures. Use errors.Is for
// retry decisions and user-facing messages.
var (
	ErrEmptyConnectionURL      = errors.New("empty redis connection URL")
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")
	ErrNotReady                = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed       = errors.New("redis healthcheck failed")
)
