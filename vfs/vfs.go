// Package vfs abstracts the storage md5 sources are browsed from.
package vfs

import (
	"io"
)

// must contain only metadata (file name) until List/Open/GetElement is called
type Element interface {
	Init(parent Directory)
	Name() string
	IsDirectory() bool
}

type File interface {
	Element
	Size() int64
	Open(readonly bool) error
	Close() error
	Reader() (*io.SectionReader, error)
	Copy(src io.Reader) error
}

type Directory interface {
	Element
	List() ([]string, error)
	GetElement(name string) (Element, error)
	Add(e Element) error
	Remove(name string) error
}
