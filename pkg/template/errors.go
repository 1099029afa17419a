package template

import "errors"

var (
	// ErrTemplateNotFound is returned when no active template matches.
	ErrTemplateNotFound = errors.New("template: not found")
	// ErrStoreRequired is returned when a nil store is provided.
	ErrStoreRequired = errors.New("template: store is required")
	// ErrInvalidTemplate is returned when saving a template without code, channel or body.
	ErrInvalidTemplate = errors.New("template: code, channel and body are required")
	// ErrInvalidSeed is returned when a YAML seed cannot be decoded or holds an invalid entry.
	ErrInvalidSeed = errors.New("template: invalid seed")
)
