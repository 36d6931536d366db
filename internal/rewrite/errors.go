package rewrite

import "errors"

// ErrEmptyAPIKey indicates that the API key was not provided.
var ErrEmptyAPIKey = errors.New("API key is required")

// ErrNoResponse indicates the API returned an empty completion.
var ErrNoResponse = errors.New("no response from API")
