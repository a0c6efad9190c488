package sessionstore

import "errors"

var (
	ErrNotFound      = errors.New("sessionstore: key not found")
	ErrCorruptFile   = errors.New("sessionstore: corrupt store file")
	ErrBackendFailed = errors.New("sessionstore: backend operation failed")
)
