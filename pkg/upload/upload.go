// Package upload publishes report directories to remote storage.
package upload

import "context"

// Uploader uploads a local report directory to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is writable by writing
	// and removing a small write-test object.
	Preflight(ctx context.Context) error

	// Upload uploads the files in localDir. The directory basename is used
	// as a sub-prefix under the configured remote prefix. It returns the
	// remote location of the directory.
	Upload(ctx context.Context, localDir string) (string, error)
}
