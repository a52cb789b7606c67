// Package fs writes the files produced by arbor: logs and rendered
// output.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// OpenFile opens name like os.OpenFile after creating its directory.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(name, flag, perm)
}

// Replace writes the output of fn to a temporary file next to name and
// renames it over name once fn and the close succeed.  On failure the
// previous content of name is left alone.
func Replace(name string, perm os.FileMode, fn func(io.Writer) error) (err error) {
	name, err = filepath.Abs(name)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(name), ".tmp-"+filepath.Base(name))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()
	if err := fn(f); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(f.Name(), perm); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}

// Output runs fn on w when name is empty or "-" and on a replaced file
// otherwise.
func Output(name string, w io.Writer, fn func(io.Writer) error) error {
	if name == "" || name == "-" {
		return fn(w)
	}
	return Replace(name, 0644, fn)
}
