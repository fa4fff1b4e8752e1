package mirror

import (
	"io"
	"os"
	"path/filepath"

	m "hg.sr.ht/~dchapes/mode"
)

func pcopy(source, dest string, set *m.Set) (err error) {
	var (
		r  *os.File
		w  *os.File
		fi os.FileInfo
	)
	if r, err = os.Open(source); err != nil {
		return
	}
	defer r.Close() // ok to ignore error: file was opened read-only.

	if fi, err = r.Stat(); err != nil {
		return
	}

	if err = os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return
	}

	if w, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm()); err != nil {
		return
	}

	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return
	}
	if err = w.Close(); err != nil {
		return
	}

	if set != nil {
		_, _, err = set.Chmod(dest)
	}
	return
}

func premove(dest string) (err error) {
	err = os.Remove(dest)
	return
}

func parseMode(s string) (*m.Set, error) {
	if s == "" {
		return nil, nil
	}
	set, err := m.Parse(s)
	if err != nil {
		return nil, err
	}
	return &set, nil
}
