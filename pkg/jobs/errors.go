package jobs

import "errors"

var (
	ErrProcessorRequired     = errors.New("jobs: processor is required")
	ErrUnknownProcessingType = errors.New("jobs: unknown slip processing type")
	ErrInvalidPeriod         = errors.New("jobs: report period is invalid")
)
