package ginternals

import "errors"

// ErrObjectNotFound is returned when the requested object doesn't
// exist in the odb, neither loose nor packed
var ErrObjectNotFound = errors.New("object not found")
