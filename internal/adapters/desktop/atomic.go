package desktop

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var errTargetIsDir = errors.New("target is a directory")

func newBytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// tempName is unique per write so concurrent saves of one name never share a temp file.
func tempName(target string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
}

// writeAtomic streams r into a temp file next to target and renames it into
// place. Readers of target see either the old content or the new one.
func writeAtomic(fsys afero.Fs, target string, r io.Reader) (err error) {
	// Some file systems let a rename replace a directory; never allow it.
	if info, statErr := fsys.Stat(target); statErr == nil && info.IsDir() {
		return fmt.Errorf("%s: %w", target, errTargetIsDir)
	}

	tmp := tempName(target)
	f, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return rename(fsys, tmp, target)
}

// rename replaces target. SFTP servers without posix-rename refuse to
// overwrite, so an existing regular file is removed and the rename retried.
func rename(fsys afero.Fs, from, to string) error {
	err := fsys.Rename(from, to)
	if err == nil {
		return nil
	}
	info, statErr := fsys.Stat(to)
	if statErr != nil || !info.Mode().IsRegular() {
		return err
	}
	if rmErr := fsys.Remove(to); rmErr != nil {
		return errors.Join(err, rmErr)
	}
	return fsys.Rename(from, to)
}
