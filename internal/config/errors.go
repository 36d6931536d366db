package config

import "errors"

// ErrInvalidKey indicates a config key that cannot be stored in the
// key=value file format.
var ErrInvalidKey = errors.New("invalid config key")

// ErrInvalidSyntax indicates a malformed line in the config file.
var ErrInvalidSyntax = errors.New("invalid config syntax")
