package entry

import (
	"fmt"
)

// NotFoundError is returned when the root directory does not exist or is not a directory.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("root directory %s not found: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("root directory %s not found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// DuplicateKeyError is returned in strict mode when two page files derive the same key.
type DuplicateKeyError struct {
	Key    string
	First  string
	Second string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate entry key %q: %s and %s", e.Key, e.First, e.Second)
}
