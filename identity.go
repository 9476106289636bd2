package asro

import "path/filepath"

// fileID is the durable identity of a file. Paths reaching the same file
// through links or different spellings share one fileID.
type fileID struct {
	dev  uint64
	ino  uint64
	path string // fallback when the platform exposes no file id
}

func pathID(path string) fileID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fileID{path: filepath.Clean(path)}
}
