package anim

import (
	"io/ioutil"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/tok"
)

func loadBone(t *testing.T) (*Clip, string) {
	t.Helper()
	data, err := ioutil.ReadFile("../testdata/bone.md5anim")
	if err != nil {
		t.Fatal(err)
	}
	c, err := Parse(data, nil)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	return c, string(data)
}

func TestParseBone(t *testing.T) {
	c, _ := loadBone(t)

	if c.FrameRate != 24 || c.AnimatedComponents != 3 || len(c.Frames) != 2 || len(c.Channels) != 2 {
		t.Fatalf("Unexpected clip header %+v", c)
	}
	child := c.Channels[1]
	if child.Name != "child" || child.Parent != 0 || child.Mask != ComponentTX|ComponentTZ || child.Offset != 0 {
		t.Errorf("Unexpected channel %+v", child)
	}
	if child.BaseOrigin != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("Unexpected base origin %v", child.BaseOrigin)
	}
	if c.Frames[1].Bounds.Min != (mgl32.Vec3{-2, -2, -2}) {
		t.Errorf("Unexpected bounds %v", c.Frames[1].Bounds)
	}
	if len(c.Frames[1].Components) != 3 || c.Frames[1].Components[1] != 3 {
		t.Errorf("Unexpected components %v", c.Frames[1].Components)
	}
}

func TestComponentOffsetDecode(t *testing.T) {
	c := &Clip{
		AnimatedComponents: 5,
		Channels: []Channel{
			{Name: "A", Parent: -1, Mask: ComponentTX | ComponentTY | ComponentTZ, Offset: 0,
				BaseOrientation: mgl32.Vec3{0.1, 0.2, 0.3}},
			{Name: "B", Parent: 0, Mask: ComponentQX | ComponentQY, Offset: 3,
				BaseOrigin: mgl32.Vec3{7, 8, 9}, BaseOrientation: mgl32.Vec3{0, 0, 0.5}},
		},
		Frames: []Frame{{Components: []float32{1, 2, 3, 4, 5}}},
	}

	origin, orientation, err := c.Decode(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if origin != (mgl32.Vec3{1, 2, 3}) || orientation != (mgl32.Vec3{0.1, 0.2, 0.3}) {
		t.Errorf("A decoded to %v %v", origin, orientation)
	}

	origin, orientation, err = c.Decode(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if origin != (mgl32.Vec3{7, 8, 9}) || orientation != (mgl32.Vec3{4, 5, 0.5}) {
		t.Errorf("B decoded to %v %v", origin, orientation)
	}
}

func TestDecodeSparseMask(t *testing.T) {
	// bits are consumed in canonical order regardless of gaps
	ch := Channel{Mask: ComponentTY | ComponentQZ, Offset: 1}
	origin, orientation := ch.decode([]float32{100, 6, 7})
	if origin != (mgl32.Vec3{0, 6, 0}) || orientation != (mgl32.Vec3{0, 0, 7}) {
		t.Errorf("decoded to %v %v", origin, orientation)
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	c, _ := loadBone(t)
	for _, frame := range []int{-1, 2} {
		if _, _, err := c.Decode(frame, 0); !errors.Is(err, ErrFrameOutOfRange) {
			t.Errorf("frame %d: expected ErrFrameOutOfRange, got %v", frame, err)
		}
	}
	if _, _, err := c.Decode(0, 2); !errors.Is(err, md5.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestFrameAt(t *testing.T) {
	c := &Clip{FrameRate: 10, Frames: make([]Frame, 4)}
	for _, tc := range []struct {
		seconds float64
		loop    bool
		frame   int
	}{
		{0, true, 0},
		{-1, true, 0},
		{0.05, true, 0},
		{0.1, true, 1},
		{0.39, true, 3},
		{0.4, true, 0},
		{0.95, true, 1},
		{0.95, false, 3},
		{0.25, false, 2},
	} {
		if got := c.FrameAt(tc.seconds, tc.loop); got != tc.frame {
			t.Errorf("FrameAt(%v, %v) = %v, want %v", tc.seconds, tc.loop, got, tc.frame)
		}
	}
	if c.Duration() != 0.4 {
		t.Errorf("Duration = %v", c.Duration())
	}
}

func TestParseErrors(t *testing.T) {
	_, bone := loadBone(t)

	for _, tc := range []struct {
		name   string
		text   string
		format bool
		target error
	}{
		{"baseframe", strings.Replace(bone, "baseframe", "basefram", 1), true, nil},
		{"frame index", strings.Replace(bone, "frame 1 {", "frame 3 {", 1), true, nil},
		{"short frame", strings.Replace(bone, "2 3 0", "2 3", 1), true, nil},
		{"mask", strings.Replace(bone, `"child"	0 5 0`, `"child"	0 64 0`, 1), true, nil},
		{"parent", strings.Replace(bone, `"child"	0 5 0`, `"child"	1 5 0`, 1), false, md5.ErrHierarchy},
		{"offset", strings.Replace(bone, `"child"	0 5 0`, `"child"	0 5 2`, 1), false, md5.ErrIndexOutOfRange},
	} {
		c, err := Parse([]byte(tc.text), nil)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if c != nil {
			t.Errorf("%s: partial result returned", tc.name)
		}
		if tc.format && !tok.IsFormatError(err) {
			t.Errorf("%s: expected format error, got %v", tc.name, err)
		}
		if tc.target != nil && !errors.Is(err, tc.target) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.target, err)
		}
	}
}

func TestMarshal(t *testing.T) {
	c, _ := loadBone(t)
	v, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	mc := v.(*MarshaledClip)
	if len(mc.Bounds) != 2 || mc.Bounds[0].Max != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("Unexpected marshaled bounds %v", mc.Bounds)
	}
}

func TestParseProgress(t *testing.T) {
	data, err := ioutil.ReadFile("../testdata/bone.md5anim")
	if err != nil {
		t.Fatal(err)
	}
	var calls [][2]int
	if _, err := ParseWithProgress(data, nil, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != [2]int{1, 2} || calls[1] != [2]int{2, 2} {
		t.Errorf("Unexpected progress calls %v", calls)
	}
}

func TestProgressReporter(t *testing.T) {
	report := progressReporter("walk.md5anim")
	// short clips and frames between steps stay quiet
	report(2, 2)
	report(100, 512)
	report(256, 512)

	want := "Parsing walk.md5anim: frame 256 of 512"
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m, ok := status.Last(); ok && m.Message == want {
			if m.Type != status.PROGRESS || m.Progress != 0.5 {
				t.Errorf("Unexpected progress message %+v", m)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Message %q was not broadcasted", want)
}
