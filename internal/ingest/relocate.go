package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Relocate moves src into dstDir, creating the directory when needed, and
// returns the absolute destination path. A name already taken in dstDir gets
// a "<base>.<unix seconds>.<n><ext>" suffix. The move is a rename, so src and
// dstDir must share a file system.
func Relocate(src, dstDir string) (string, error) {
	return relocate(src, dstDir, time.Now)
}

func relocate(src, dstDir string, now func() time.Time) (string, error) {
	fail := func(err error) (string, error) {
		return "", &RelocationError{Src: src, DstDir: dstDir, Err: err}
	}

	info, err := os.Stat(src)
	if err != nil {
		return fail(err)
	}
	if !info.Mode().IsRegular() {
		return fail(ErrNotAFile)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fail(err)
	}

	dst, err := freeName(dstDir, filepath.Base(src), now)
	if err != nil {
		return fail(err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fail(err)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return dst, nil
	}
	return abs, nil
}

func freeName(dir, name string, now func() time.Time) (string, error) {
	candidate := filepath.Join(dir, name)
	taken, err := exists(candidate)
	if err != nil || !taken {
		return candidate, err
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	stamp := now().Unix()
	for counter := 1; ; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%d.%d%s", base, stamp, counter, ext))
		taken, err := exists(candidate)
		if err != nil || !taken {
			return candidate, err
		}
	}
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
