package vfs

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type DirectoryDriver struct {
	path string
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

func (dd *DirectoryDriver) Init(parent Directory) {}

func (dd *DirectoryDriver) Name() string {
	return filepath.Base(dd.path)
}

func (dd *DirectoryDriver) IsDirectory() bool {
	return true
}

func (dd *DirectoryDriver) Path() string {
	return dd.path
}

// names come from urls, so nothing outside of the directory is reachable
func (dd *DirectoryDriver) child(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("Invalid element name '%s'", name)
	}
	return filepath.Join(dd.path, name), nil
}

func (dd *DirectoryDriver) List() ([]string, error) {
	fileinfos, err := ioutil.ReadDir(dd.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error getting directory '%s' info", dd.path)
	}
	result := make([]string, 0, len(fileinfos))
	for _, f := range fileinfos {
		result = append(result, f.Name())
	}
	return result, nil
}

func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	newPath, err := dd.child(name)
	if err != nil {
		return nil, err
	}
	s, err := os.Stat(newPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Stat error")
	}
	var e Element
	if s.IsDir() {
		e = NewDirectoryDriver(newPath)
	} else {
		e = NewDirectoryDriverFile(newPath)
	}
	e.Init(dd)
	return e, nil
}

func (dd *DirectoryDriver) Add(e Element) error {
	path, err := dd.child(e.Name())
	if err != nil {
		return err
	}
	if e.IsDirectory() {
		return os.Mkdir(path, os.ModePerm)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.Wrapf(err, "file '%s' creation failure", path)
	}
	return f.Close()
}

func (dd *DirectoryDriver) Remove(name string) error {
	path, err := dd.child(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

type DirectoryDriverFile struct {
	path string
	f    *os.File
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{path: path}
}

func (ddf *DirectoryDriverFile) Init(parent Directory) {
	if dd, ok := parent.(*DirectoryDriver); ok {
		ddf.path = filepath.Join(dd.path, filepath.Base(ddf.path))
	}
}

func (ddf *DirectoryDriverFile) Name() string {
	return filepath.Base(ddf.path)
}

func (ddf *DirectoryDriverFile) IsDirectory() bool {
	return false
}

func (ddf *DirectoryDriverFile) Size() int64 {
	stat, err := os.Stat(ddf.path)
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (ddf *DirectoryDriverFile) Open(readonly bool) error {
	if ddf.f != nil {
		return errors.Errorf("File already opened")
	}
	flags := os.O_RDWR
	if readonly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(ddf.path, flags, 0)
	if err != nil {
		return errors.Wrapf(err, "os.Open('%s')", ddf.path)
	}
	ddf.f = f
	return nil
}

func (ddf *DirectoryDriverFile) Close() error {
	if ddf.f != nil {
		if err := ddf.f.Close(); err != nil {
			return errors.Wrapf(err, "os.File.Close()")
		}
		ddf.f = nil
	}
	return nil
}

func (ddf *DirectoryDriverFile) Reader() (*io.SectionReader, error) {
	if ddf.f == nil {
		return nil, errors.Errorf("First you need to open file")
	}
	return io.NewSectionReader(ddf.f, 0, ddf.Size()), nil
}

// Copy replaces file content, the file is reopened for writing
func (ddf *DirectoryDriverFile) Copy(src io.Reader) error {
	ddf.Close()

	f, err := os.Create(ddf.path)
	if err != nil {
		return errors.Wrapf(err, "os.Create('%s')", ddf.path)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return errors.Wrapf(err, "io.Copy(...)")
	}
	return nil
}
