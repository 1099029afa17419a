package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse REDIS_URL")
	ErrRedisNotReady                = errors.New("redis did not answer ping before the retry budget ran out")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL, use REDIS_URL env var")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
