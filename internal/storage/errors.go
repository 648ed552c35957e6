package storage

import "errors"

// ErrBadAppend means the appended transactions are not the tail of the
// account history being saved.
var ErrBadAppend = errors.New("appended transactions do not match account history")
