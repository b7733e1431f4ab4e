package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type spanFile struct {
	path    string
	size    int64
	mtimeNS int64
}

// walkSpans collects every regular file under root with its size and
// modification time. A missing root is an empty cache, not an error.
func walkSpans(root string) ([]spanFile, int64, error) {
	var files []spanFile
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		files = append(files, spanFile{
			path:    path,
			size:    info.Size(),
			mtimeNS: info.ModTime().UnixNano(),
		})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func dirSize(root string) (int64, error) {
	_, total, err := walkSpans(root)
	return total, err
}

func pruneDir(root string, targetBytes int64) (freed, remaining int64, err error) {
	if targetBytes < 0 {
		targetBytes = 0
	}

	files, total, err := walkSpans(root)
	if err != nil {
		return 0, 0, err
	}
	remaining = total
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	slices.SortFunc(files, func(a, b spanFile) int {
		if a.mtimeNS != b.mtimeNS {
			if a.mtimeNS < b.mtimeNS {
				return -1
			}
			return 1
		}
		return strings.Compare(a.path, b.path)
	})

	for _, f := range files {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= f.size
		freed += f.size
	}
	return freed, remaining, nil
}
