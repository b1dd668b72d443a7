package reportfile

import "errors"

var (
	ErrFileNotFound       = errors.New("report file not found")
	ErrFileExpired        = errors.New("report file has expired")
	ErrRecordConflict     = errors.New("file record already exists")
	ErrStatusConflict     = errors.New("file status changed concurrently")
	ErrEmptyFile          = errors.New("file is empty")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrStorageUnavailable = errors.New("object storage unavailable")
)
