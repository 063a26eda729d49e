// Package customerrors defines common sentinel errors shared by the
// index core and its callers.
package customerrors

import (
	"errors"
)

var (
	// ErrKeyExists is returned on insertion of a key that is already
	// present in the index. The tree is left unmodified.
	ErrKeyExists = errors.New("key already exists")

	// ErrKeyNotFound should be returned from lookup operations when the
	// lookup key is not found in the index.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidMagic is returned when a file does not carry the index
	// format signature. The file is treated as unusable.
	ErrInvalidMagic = errors.New("invalid magic marker")
)
