package pipeline

import "errors"

// ErrEmptyInput indicates the input text is empty or too short to process.
var ErrEmptyInput = errors.New("input text is empty or too short")

// ErrNoRewriter indicates rewrite mode was requested without a rewriting
// service. This is a configuration error, raised before any unit is processed.
var ErrNoRewriter = errors.New("rewrite mode requires a rewriter")
