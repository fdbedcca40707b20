package anim

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/tok"
	"github.com/mogaika/md5_browser/utils"
)

// Component flags which base values a frame overrides, in storage order
type Component uint8

const (
	ComponentTX Component = 1 << iota
	ComponentTY
	ComponentTZ
	ComponentQX
	ComponentQY
	ComponentQZ

	ComponentsMask = ComponentTX | ComponentTY | ComponentTZ | ComponentQX | ComponentQY | ComponentQZ
)

func (c Component) Count() int {
	return bits.OnesCount8(uint8(c))
}

type Channel struct {
	Name            string
	Parent          int
	Mask            Component
	Offset          int
	BaseOrigin      mgl32.Vec3
	BaseOrientation mgl32.Vec3
}

type Bounds struct {
	Min, Max mgl32.Vec3
}

type Frame struct {
	Bounds     Bounds
	Components []float32
}

type Clip struct {
	Version            int
	CommandLine        string
	FrameRate          int
	AnimatedComponents int
	Channels           []Channel
	Frames             []Frame
}

var ErrFrameOutOfRange = errors.New("frame out of range")

func (c *Clip) CheckFrame(frame int) error {
	if frame < 0 || frame >= len(c.Frames) {
		return errors.Wrapf(ErrFrameOutOfRange, "frame %d of %d", frame, len(c.Frames))
	}
	return nil
}

// Decode returns channel origin and orientation xyz for frame.
// Each set mask bit consumes the next component after Offset,
// unset bits keep the base frame value.
func (c *Clip) Decode(frame, channel int) (mgl32.Vec3, mgl32.Vec3, error) {
	if err := c.CheckFrame(frame); err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	if err := md5.CheckIndex("channel", channel, len(c.Channels)); err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	origin, orientation := c.Channels[channel].decode(c.Frames[frame].Components)
	return origin, orientation, nil
}

func (ch *Channel) decode(components []float32) (origin, orientation mgl32.Vec3) {
	origin, orientation = ch.BaseOrigin, ch.BaseOrientation

	applied := 0
	for bit := 0; bit < 6; bit++ {
		if ch.Mask&(1<<uint(bit)) == 0 {
			continue
		}
		v := components[ch.Offset+applied]
		applied++
		if bit < 3 {
			origin[bit] = v
		} else {
			orientation[bit-3] = v
		}
	}
	return
}

func (c *Clip) Duration() float64 {
	if c.FrameRate <= 0 {
		return 0
	}
	return float64(len(c.Frames)) / float64(c.FrameRate)
}

// FrameAt maps playback time to a frame number.
// Without loop the last frame is held after the end.
func (c *Clip) FrameAt(seconds float64, loop bool) int {
	if len(c.Frames) == 0 || c.FrameRate <= 0 || seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	frame := int(math.Floor(seconds * float64(c.FrameRate)))
	if loop {
		return frame % len(c.Frames)
	}
	if frame >= len(c.Frames) {
		return len(c.Frames) - 1
	}
	return frame
}

func checkCount(what string, n int) error {
	if n < 0 {
		return &tok.FormatError{Expected: "non negative " + what, Got: fmt.Sprint(n)}
	}
	return nil
}

func (c *Clip) parseHeader(r *tok.Reader) (numFrames, numJoints int, err error) {
	if c.Version, err = r.KeyInt("MD5Version"); err != nil {
		return
	}
	if c.Version != md5.Version {
		err = &tok.FormatError{Expected: fmt.Sprintf("MD5Version %d", md5.Version), Got: fmt.Sprint(c.Version)}
		return
	}
	if err = r.Keyword("commandline"); err != nil {
		return
	}
	if c.CommandLine, err = r.Word(); err != nil {
		return
	}
	if numFrames, err = r.KeyInt("numFrames"); err != nil {
		return
	}
	if err = checkCount("numFrames", numFrames); err != nil {
		return
	}
	if numJoints, err = r.KeyInt("numJoints"); err != nil {
		return
	}
	if err = checkCount("numJoints", numJoints); err != nil {
		return
	}
	if c.FrameRate, err = r.KeyInt("frameRate"); err != nil {
		return
	}
	if c.AnimatedComponents, err = r.KeyInt("numAnimatedComponents"); err != nil {
		return
	}
	err = checkCount("numAnimatedComponents", c.AnimatedComponents)
	return
}

func block(r *tok.Reader, name string) error {
	if err := r.Keyword(name); err != nil {
		return err
	}
	return r.Keyword("{")
}

func (c *Clip) parseHierarchy(r *tok.Reader, count int) error {
	if err := block(r, "hierarchy"); err != nil {
		return err
	}
	c.Channels = make([]Channel, count)
	for i := range c.Channels {
		ch := &c.Channels[i]
		var err error
		if ch.Name, err = r.Word(); err != nil {
			return err
		}
		if ch.Parent, err = r.Int(); err != nil {
			return err
		}
		var mask int
		if mask, err = r.Int(); err != nil {
			return err
		}
		if mask < 0 || mask > int(ComponentsMask) {
			return &tok.FormatError{Expected: "component mask below 64", Got: fmt.Sprint(mask)}
		}
		ch.Mask = Component(mask)
		if ch.Offset, err = r.Int(); err != nil {
			return err
		}
	}
	return r.Keyword("}")
}

func (c *Clip) parseBounds(r *tok.Reader, count int) (err error) {
	if err = block(r, "bounds"); err != nil {
		return
	}
	c.Frames = make([]Frame, count)
	for i := range c.Frames {
		b := &c.Frames[i].Bounds
		if b.Min, err = r.Vec3(); err != nil {
			return
		}
		if b.Max, err = r.Vec3(); err != nil {
			return
		}
	}
	return r.Keyword("}")
}

func (c *Clip) parseBaseFrame(r *tok.Reader) (err error) {
	if err = block(r, "baseframe"); err != nil {
		return
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.BaseOrigin, err = r.Vec3(); err != nil {
			return
		}
		if ch.BaseOrientation, err = r.Vec3(); err != nil {
			return
		}
	}
	return r.Keyword("}")
}

func (c *Clip) parseFrame(r *tok.Reader, iFrame int) error {
	index, err := r.KeyInt("frame")
	if err != nil {
		return err
	}
	if index != iFrame {
		return &tok.FormatError{Expected: fmt.Sprintf("frame %d", iFrame), Got: fmt.Sprintf("frame %d", index)}
	}
	if err := r.Keyword("{"); err != nil {
		return err
	}
	f := &c.Frames[iFrame]
	f.Components = make([]float32, c.AnimatedComponents)
	if err := r.Floats(f.Components); err != nil {
		return err
	}
	return r.Keyword("}")
}

func (c *Clip) validate() error {
	for i := range c.Channels {
		ch := &c.Channels[i]
		if err := md5.CheckParent(i, ch.Parent); err != nil {
			return errors.Wrapf(err, "channel %q", ch.Name)
		}
		if ch.Offset < 0 || ch.Offset+ch.Mask.Count() > c.AnimatedComponents {
			return errors.Wrapf(md5.ErrIndexOutOfRange, "channel %q reads components [%d, %d) of %d",
				ch.Name, ch.Offset, ch.Offset+ch.Mask.Count(), c.AnimatedComponents)
		}
	}
	return nil
}

// ProgressFunc is called after each parsed frame with the number of
// frames done so far
type ProgressFunc func(done, total int)

// Parse reads md5anim text. Channel parents and component ranges are
// validated so later decoding can not index out of the frame data.
func Parse(text []byte, _l *utils.Logger) (*Clip, error) {
	return ParseWithProgress(text, _l, nil)
}

func ParseWithProgress(text []byte, _l *utils.Logger, progress ProgressFunc) (*Clip, error) {
	r, err := tok.NewReader(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to tokenize")
	}

	c := &Clip{}
	numFrames, numJoints, err := c.parseHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse header")
	}
	_l.Printf("md5anim v%d: %d frames at %d fps, %d joints, %d components",
		c.Version, numFrames, c.FrameRate, numJoints, c.AnimatedComponents)

	if err := c.parseHierarchy(r, numJoints); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse hierarchy")
	}
	if err := c.parseBounds(r, numFrames); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse bounds")
	}
	if err := c.parseBaseFrame(r); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse baseframe")
	}
	for i := range c.Frames {
		if err := c.parseFrame(r, i); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse frame %d", i)
		}
		if progress != nil {
			progress(i+1, len(c.Frames))
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}
