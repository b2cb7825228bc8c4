// Package filex reads attachments from disk and saves downloaded media.
package filex

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// MaxAttachmentSize bounds a single thumbnail or media file.
const MaxAttachmentSize = 16 << 20

// EnsureSubDir creates dirName under the working directory and returns its
// absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ReadAttachment loads path and guesses its content type, preferring the
// file extension over content sniffing.
func ReadAttachment(path string) (string, []byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > MaxAttachmentSize {
		return "", nil, fmt.Errorf("%s exceeds %d bytes", path, MaxAttachmentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return contentType, data, nil
}

// SaveMedia writes data into dir as name plus an extension matching
// contentType and returns the full path.
func SaveMedia(dir, name, contentType string, data []byte) (string, error) {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	path := filepath.Join(dir, filepath.Base(name)+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
