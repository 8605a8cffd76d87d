package tagger

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// renameFunc is swapped in tests to simulate rename failures.
var renameFunc = os.Rename

// writeFileAtomic writes data to path through a temp file in the same directory and
// renames it over the target, replacing any existing file. On failure the temp file is
// removed and the target is left as it was. The directory must already exist.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	// Dot prefix keeps the temp file out of media library views.
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, path); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)

	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
