package store

import "errors"

// ErrNoteNotFound is returned by operations that require an existing note,
// such as share-link generation or folder reassignment.
var ErrNoteNotFound = errors.New("store: note not found")
