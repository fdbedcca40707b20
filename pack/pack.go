package pack

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/tok"
	"github.com/mogaika/md5_browser/vfs"
)

type ResourceSource interface {
	Name() string
	Size() int64
	Save(in *io.SectionReader) error
}

type FileLoader func(src ResourceSource, r *io.SectionReader) (interface{}, error)

// Marshaler is implemented by instances that have a compact json view
type Marshaler interface {
	Marshal() (interface{}, error)
}

// HttpActioner is implemented by instances that can export themselves
type HttpActioner interface {
	HttpAction(src ResourceSource, w http.ResponseWriter, r *http.Request, action string) error
}

var gHandlers map[string]FileLoader = make(map[string]FileLoader, 0)

func SetHandler(format string, ldr FileLoader) {
	gHandlers[strings.ToUpper(format)] = ldr
}

func HandledExtensions() []string {
	result := make([]string, 0, len(gHandlers))
	for ext := range gHandlers {
		result = append(result, ext)
	}
	return result
}

func CallHandler(s ResourceSource, r *io.SectionReader) (interface{}, error) {
	ext := strings.ToUpper(filepath.Ext(s.Name()))

	if h, found := gHandlers[ext]; found {
		return h(s, r)
	} else {
		return nil, errors.Errorf("[pack] Cannot find handler for '%s' extension", ext)
	}
}

type PackResSrc struct {
	pf vfs.File
	d  vfs.Directory
}

func NewPackResSrc(d vfs.Directory, f vfs.File) *PackResSrc {
	return &PackResSrc{d: d, pf: f}
}

func (s *PackResSrc) Name() string {
	return s.pf.Name()
}

func (s *PackResSrc) Size() int64 {
	return s.pf.Size()
}

func (s *PackResSrc) Save(in *io.SectionReader) error {
	if f, err := vfs.DirectoryGetFile(s.d, s.pf.Name()); err != nil {
		return errors.Wrapf(err, "[pack] Cannot get file '%s'", s.pf.Name())
	} else {
		return vfs.OpenFileAndCopy(f, in)
	}
}

func GetInstanceHandler(d vfs.Directory, fileName string) (interface{}, error) {
	f, err := vfs.DirectoryGetFile(d, fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Cannot get file '%s'", fileName)
	}

	r, err := vfs.OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Cannot get instance of '%s'", fileName)
	}
	defer f.Close()

	inst, err := CallHandler(NewPackResSrc(d, f), r)
	if err != nil {
		if tok.IsFormatError(err) {
			status.Error("Malformed %s: %v", fileName, err)
		} else {
			status.Error("Failed to load %s: %v", fileName, err)
		}
		return nil, errors.Wrapf(err, "[pack] Handler error")
	}
	status.Info("Loaded %s", fileName)

	return inst, nil
}
