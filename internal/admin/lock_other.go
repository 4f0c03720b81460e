//go:build !unix

package admin

import "os"

// Without flock only the in-process mutex serializes queue rewrites.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
