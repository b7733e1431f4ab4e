package kwfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ByteSource provides random access to a keyword file.
//
// Implementations exist for local files (*os.File) and HTTP range
// requests. SourceID must return a stable identifier for the
// underlying content; it keys cached payload spans.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File, sourceID string) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat keyword file: %w", err)
	}
	if sourceID == "" {
		sourceID = fallbackFileSourceID(f.Name(), info)
	}
	return &fileSource{file: f, size: info.Size(), sourceID: sourceID}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// SourceID returns a stable identifier for the file content.
func (fs *fileSource) SourceID() string {
	return fs.sourceID
}

func fallbackFileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// Interface compliance for fileSource.
var _ ByteSource = (*fileSource)(nil)
