package ioutils

import "os"

// EnsureDir creates a directory and all parents if they do not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteFile writes data to path with mode 0644, truncating any
// existing file.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
