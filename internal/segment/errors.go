package segment

import "errors"

// ErrUnknownMode indicates a segmentation mode string that is neither
// "rewrite" nor "mechanical".
var ErrUnknownMode = errors.New("unknown processing mode")
