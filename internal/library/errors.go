package library

import "errors"

// Sentinel errors for library operations.
var (
	ErrMediaNotFound   = errors.New("media not found")
	ErrVideoNotFound   = errors.New("video not found")
	ErrEpisodeNotFound = errors.New("episode not found")
)
