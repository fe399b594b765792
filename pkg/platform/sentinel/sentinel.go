// Package sentinel holds the errors storage adapters share with services.
package sentinel

import "errors"

// ErrConflict reports a write rejected by a uniqueness constraint.
var ErrConflict = errors.New("conflict: record already exists")
