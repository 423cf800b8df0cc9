package cos

import (
	"bufio"
	"os"
	"path/filepath"
)

// HomeDir returns the invoking user's home directory, or "" if undiscoverable.
func HomeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return ""
}

// ReadOneLine returns the first line of fqn, trimmed of its trailing newline.
func ReadOneLine(fqn string) (s string, err error) {
	f, err := os.Open(fqn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if sc.Scan() {
		s = sc.Text()
	}
	return s, sc.Err()
}

// CreateFileExcl atomically creates fqn with O_EXCL semantics: it fails with
// os.ErrExist if fqn already exists, satisfying the create-or-open protocol's
// "create" branch without a races window where a half-written file is visible.
func CreateFileExcl(fqn string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fqn), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(fqn, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		os.Remove(fqn)
		return werr
	}
	return cerr
}

// WriteFileAtomic writes data to fqn via temp-file + rename, so a concurrent
// reader never observes a partially written static-config file.
func WriteFileAtomic(fqn string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fqn), 0o755); err != nil {
		return err
	}
	tmp := fqn + ".tmp." + GenBEID(uint64(os.Getpid()), 6)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fqn)
}

func FileExists(fqn string) bool {
	_, err := os.Stat(fqn)
	return err == nil
}
