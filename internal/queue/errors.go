package queue

import (
	"errors"
	"fmt"

	"phototag/internal/services"
)

// ErrStaleLease reports that the caller no longer holds the lease it is
// acting on. The caller must discard its result.
var ErrStaleLease = errors.New("stale lease")

// ErrPhotoNotFound reports a missing photo record.
var ErrPhotoNotFound = fmt.Errorf("photo %w", services.ErrNotFound)
