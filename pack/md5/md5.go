// Package md5 holds what the md5mesh and md5anim readers share:
// the format version, error kinds and source loading.
package md5

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/config"
	"github.com/mogaika/md5_browser/utils"
)

const Version = 10

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrHierarchy       = errors.New("joint hierarchy is not parent first")
)

// CheckParent enforces that every joint is declared after its parent
func CheckParent(index, parent int) error {
	if parent == -1 || (parent >= 0 && parent < index) {
		return nil
	}
	return errors.Wrapf(ErrHierarchy, "joint %d has parent %d", index, parent)
}

func CheckIndex(what string, index, count int) error {
	if index < 0 || index >= count {
		return errors.Wrapf(ErrIndexOutOfRange, "%s %d not in [0, %d)", what, index, count)
	}
	return nil
}

// ReadSource reads the whole resource and converts it to utf-8
func ReadSource(r io.Reader) ([]byte, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read source")
	}
	return utils.DecodeText(raw)
}

// TraceLogger returns the parse tracer when tracing is enabled in config
func TraceLogger() *utils.Logger {
	if !config.Get().TraceParse {
		return nil
	}
	return utils.NewLogger(os.Stdout)
}
