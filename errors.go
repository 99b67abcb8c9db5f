package memstore

import "github.com/pkg/errors"

// ErrSnapshotIDMismatch is returned by ClearSnapshot when the caller's id
// disagrees with the currently outstanding snapshot id.
var ErrSnapshotIDMismatch = errors.New("memstore: snapshot id mismatch")

// snapshotIDMismatch wraps ErrSnapshotIDMismatch with the ids involved so
// callers logging the failure don't need to thread them through manually.
func snapshotIDMismatch(outstanding, requested int64) error {
	return errors.Wrapf(ErrSnapshotIDMismatch, "clearSnapshot called with id %d, outstanding snapshot is %d", requested, outstanding)
}
