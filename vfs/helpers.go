package vfs

import (
	"io"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func OpenFileAndGetReader(f File, readonly bool) (*io.SectionReader, error) {
	if err := f.Open(readonly); err != nil {
		return nil, errors.Wrapf(err, "Cannot open file '%s'", f.Name())
	}
	r, err := f.Reader()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "Cannot get file '%s' reader", f.Name())
	}
	return r, nil
}

func OpenFileAndCopy(f File, src io.Reader) error {
	if err := f.Open(false); err != nil {
		return errors.Wrapf(err, "Cannot open file '%s'", f.Name())
	}
	defer f.Close()
	if err := f.Copy(src); err != nil {
		return errors.Wrapf(err, "Cannot copy data to file '%s'", f.Name())
	}
	return nil
}

func DirectoryGetFile(d Directory, name string) (File, error) {
	e, err := d.GetElement(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open file '%s'", name)
	}
	if e.IsDirectory() {
		return nil, errors.Errorf("File '%s' is directory, not a file!", name)
	}
	return e.(File), nil
}

// ReadFile returns the whole content of file name
func ReadFile(d Directory, name string) ([]byte, error) {
	f, err := DirectoryGetFile(d, name)
	if err != nil {
		return nil, err
	}
	r, err := OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ioutil.ReadAll(r)
}

// ListExtensions returns sorted names whose upper cased extension is in exts
func ListExtensions(d Directory, exts []string) ([]string, error) {
	names, err := d.List()
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(names))
	for _, name := range names {
		ext := strings.ToUpper(filepath.Ext(name))
		for _, e := range exts {
			if ext == e {
				result = append(result, name)
				break
			}
		}
	}
	sort.Strings(result)
	return result, nil
}
