//go:build !unix && !windows

package asro

import "os"

func identify(path string) (fileID, error) {
	if _, err := os.Stat(path); err != nil {
		return fileID{}, err
	}
	return pathID(path), nil
}
