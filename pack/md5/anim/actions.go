package anim

import (
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack"
	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/webutils"
)

type MarshaledClip struct {
	Version            int
	CommandLine        string
	FrameRate          int
	Duration           float64
	AnimatedComponents int
	Channels           []Channel
	Bounds             []Bounds
}

func (c *Clip) Marshal() (interface{}, error) {
	mc := &MarshaledClip{
		Version:            c.Version,
		CommandLine:        c.CommandLine,
		FrameRate:          c.FrameRate,
		Duration:           c.Duration(),
		AnimatedComponents: c.AnimatedComponents,
		Channels:           c.Channels,
		Bounds:             make([]Bounds, len(c.Frames)),
	}
	for i := range c.Frames {
		mc.Bounds[i] = c.Frames[i].Bounds
	}
	return mc, nil
}

func (c *Clip) HttpAction(src pack.ResourceSource, w http.ResponseWriter, r *http.Request, action string) error {
	switch action {
	case "yaml":
		v, _ := c.Marshal()
		webutils.WriteYamlFile(w, v, src.Name())
	case "json":
		v, _ := c.Marshal()
		webutils.WriteJsonFile(w, v, src.Name())
	case "spew":
		webutils.WriteSpew(w, c)
	default:
		return errors.Errorf("Unknown action %q", action)
	}
	return nil
}

// long clips report parse progress every progressStep frames
const progressStep = 128

func progressReporter(name string) ProgressFunc {
	return func(done, total int) {
		if total < progressStep || (done%progressStep != 0 && done != total) {
			return
		}
		status.Progress(float32(done)/float32(total), "Parsing %s: frame %d of %d", name, done, total)
	}
}

func init() {
	pack.SetHandler(".MD5ANIM", func(src pack.ResourceSource, r *io.SectionReader) (interface{}, error) {
		text, err := md5.ReadSource(r)
		if err != nil {
			return nil, err
		}
		return ParseWithProgress(text, md5.TraceLogger(), progressReporter(src.Name()))
	})
}
