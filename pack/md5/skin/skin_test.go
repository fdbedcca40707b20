package skin

import (
	"bytes"
	"io/ioutil"
	"strings"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5/anim"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
	"github.com/mogaika/md5_browser/utils"
	"github.com/mogaika/md5_browser/utils/gltfutils"
)

const pointMesh = `MD5Version 10
commandline ""
numJoints 1
numMeshes 1
joints {
	"root" -1 ( 0 0 0 ) ( 0 0 0 )
}
mesh {
	shader "point"
	numverts 1
	vert 0 ( 0 0 ) 0 1
	numtris 1
	tri 0 0 0 0
	numweights 1
	weight 0 0 1 ( 0 0 0 )
}
`

const pointAnim = `MD5Version 10
commandline ""
numFrames 1
numJoints 1
frameRate 24
numAnimatedComponents 1
hierarchy {
	"root" -1 1 0
}
bounds {
	( 0 0 0 ) ( 0 0 0 )
}
baseframe {
	( 0 0 0 ) ( 0 0 0 )
}
frame 0 {
	5
}
`

func loadFiles(t *testing.T, meshPath, animPath string) (*mesh.Model, *anim.Clip) {
	t.Helper()
	meshData, err := ioutil.ReadFile(meshPath)
	if err != nil {
		t.Fatal(err)
	}
	animData, err := ioutil.ReadFile(animPath)
	if err != nil {
		t.Fatal(err)
	}
	return parseBoth(t, string(meshData), string(animData))
}

func parseBoth(t *testing.T, meshText, animText string) (*mesh.Model, *anim.Clip) {
	t.Helper()
	model, err := mesh.Parse([]byte(meshText), nil)
	if err != nil {
		t.Fatal(err)
	}
	clip, err := anim.Parse([]byte(animText), nil)
	if err != nil {
		t.Fatal(err)
	}
	return model, clip
}

func loadBone(t *testing.T) *Instance {
	t.Helper()
	model, clip := loadFiles(t, "../testdata/bone.md5mesh", "../testdata/bone.md5anim")
	inst, err := NewInstance("bone", model, clip)
	if err != nil {
		t.Fatal(err)
	}
	return inst
}

func TestEndToEndTranslate(t *testing.T) {
	model, clip := parseBoth(t, pointMesh, pointAnim)
	if got := model.Meshes[0].Vertices[0].BindPosition; got != (mgl32.Vec3{}) {
		t.Errorf("bind aggregate %v, want origin", got)
	}

	inst, err := NewInstance("point", model, clip)
	if err != nil {
		t.Fatal(err)
	}
	if err := inst.EvaluateFrame(0); err != nil {
		t.Fatal(err)
	}
	if got := inst.Animated[0][0]; got != (mgl32.Vec3{5, 0, 0}) {
		t.Errorf("animated position %v, want (5 0 0)", got)
	}
}

func TestBoneFrames(t *testing.T) {
	inst := loadBone(t)

	if err := inst.EvaluateFrame(0); err != nil {
		t.Fatal(err)
	}
	for i, v := range inst.Model.Meshes[0].Vertices {
		if !inst.Animated[0][i].ApproxEqualThreshold(v.BindPosition, 1e-6) {
			t.Errorf("frame 0 vertex %d at %v, bind %v", i, inst.Animated[0][i], v.BindPosition)
		}
	}

	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}
	for i, want := range []mgl32.Vec3{{0, 0, 0}, {2, 1, 3}, {2, 0, 2.5}} {
		if got := inst.Animated[0][i]; !got.ApproxEqualThreshold(want, 1e-6) {
			t.Errorf("frame 1 vertex %d at %v, want %v", i, got, want)
		}
	}
	if inst.Frame != 1 {
		t.Errorf("Frame = %d", inst.Frame)
	}
	if !inst.SkinMatrix(1).ApproxEqualThreshold(mgl32.Translate3D(1, 0, 3), 1e-6) {
		t.Errorf("unexpected skin matrix %v", inst.SkinMatrix(1))
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	inst := loadBone(t)
	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}
	first := append([]mgl32.Vec3(nil), inst.Animated[0]...)
	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != inst.Animated[0][i] {
			t.Errorf("vertex %d changed between evaluations: %v != %v", i, first[i], inst.Animated[0][i])
		}
	}
}

func TestEvaluateOutOfRange(t *testing.T) {
	inst := loadBone(t)
	if err := inst.EvaluateFrame(7); !errors.Is(err, anim.ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange, got %v", err)
	}
	if err := inst.EvaluateTime(1.0/24.0*1.5, true); err != nil || inst.Frame != 1 {
		t.Errorf("EvaluateTime: frame %d, err %v", inst.Frame, err)
	}
}

func TestEvaluateWithoutChannels(t *testing.T) {
	model, _ := parseBoth(t, pointMesh, pointAnim)
	inst, err := NewInstance("still", model, &anim.Clip{FrameRate: 24, Frames: []anim.Frame{{}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := inst.EvaluateFrame(99); !errors.Is(err, anim.ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange, got %v", err)
	}
	if inst.Frame != -1 {
		t.Errorf("failed evaluation recorded frame %d", inst.Frame)
	}
	if err := inst.EvaluateFrame(0); err != nil || inst.Frame != 0 {
		t.Errorf("frame 0: frame %d, err %v", inst.Frame, err)
	}
}

func TestIndependentInstances(t *testing.T) {
	model, clip := loadFiles(t, "../testdata/bone.md5mesh", "../testdata/bone.md5anim")

	var wg sync.WaitGroup
	instances := make([]*Instance, 8)
	errs := make([]error, len(instances))
	for i := range instances {
		inst, err := NewInstance("i", model, clip)
		if err != nil {
			t.Fatal(err)
		}
		instances[i] = inst
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				if errs[i] = instances[i].EvaluateFrame(i % 2); errs[i] != nil {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i, inst := range instances {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		want := mgl32.Vec3{1, 1, 0}
		if i%2 == 1 {
			want = mgl32.Vec3{2, 1, 3}
		}
		if got := inst.Animated[0][1]; !got.ApproxEqualThreshold(want, 1e-6) {
			t.Errorf("instance %d vertex 1 at %v, want %v", i, got, want)
		}
	}

	// the shared model keeps its bind positions
	if model.Meshes[0].Vertices[1].BindPosition != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("shared bind position changed")
	}
}

func TestJointMismatch(t *testing.T) {
	model, clip := loadFiles(t, "../testdata/bone.md5mesh", "../testdata/bone.md5anim")

	renamed := *clip
	renamed.Channels = append([]anim.Channel(nil), clip.Channels...)
	renamed.Channels[1].Name = "elbow"
	if _, err := NewInstance("x", model, &renamed); !errors.Is(err, ErrJointMismatch) {
		t.Errorf("expected ErrJointMismatch for unknown name, got %v", err)
	}

	reparented := *clip
	reparented.Channels = append([]anim.Channel(nil), clip.Channels...)
	reparented.Channels[1].Parent = -1
	if _, err := NewInstance("x", model, &reparented); !errors.Is(err, ErrJointMismatch) {
		t.Errorf("expected ErrJointMismatch for different parent, got %v", err)
	}
}

func TestStream(t *testing.T) {
	inst := loadBone(t)

	bind, err := BindStream(inst.Model, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bind) != 3 {
		t.Fatalf("expected 3 stream vertices, got %d", len(bind))
	}
	// triangle stored as 2 1 0
	if !bind[0].Position.ApproxEqualThreshold(mgl32.Vec3{1.5, 0, 1}, 1e-6) || bind[2].UV != (mgl32.Vec2{0, 0.75}) {
		t.Errorf("unexpected bind stream %s", utils.SDump(bind))
	}

	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}
	all, err := inst.StreamAll()
	if err != nil {
		t.Fatal(err)
	}
	flat := all[0]
	if len(flat) != 3*StreamStride {
		t.Fatalf("unexpected flat length %d", len(flat))
	}
	// second corner is vertex 1: u v x y z
	want := []float32{1, 1, 2, 1, 3}
	for i, v := range want {
		if d := flat[StreamStride+i] - v; d > 1e-6 || d < -1e-6 {
			t.Errorf("flat[%d] = %v, want %v", StreamStride+i, flat[StreamStride+i], v)
		}
	}

	if _, err := inst.Stream(3); err == nil {
		t.Errorf("expected error for missing mesh")
	}
}

func TestExportFrame(t *testing.T) {
	inst := loadBone(t)
	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := inst.ExportObjFrame(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "v 2.000000 1.000000 3.000000") {
		t.Errorf("obj has no animated vertex:\n%s", buf.String())
	}

	if _, err := inst.ExportFbxFrame("bone"); err != nil {
		t.Fatal(err)
	}
}

func TestExportGLTFAnimation(t *testing.T) {
	inst := loadBone(t)
	if err := inst.EvaluateFrame(1); err != nil {
		t.Fatal(err)
	}

	doc := gltfutils.NewDocument()
	if err := inst.ExportGLTF(doc, "bone"); err != nil {
		t.Fatal(err)
	}
	if len(doc.Animations) != 1 {
		t.Fatalf("expected one animation, got %d", len(doc.Animations))
	}
	a := doc.Animations[0]
	if len(a.Channels) != 4 || len(a.Samplers) != 4 {
		t.Errorf("expected 4 channels and samplers, got %d %d", len(a.Channels), len(a.Samplers))
	}
	if inst.Frame != 1 {
		t.Errorf("export changed instance frame to %d", inst.Frame)
	}

	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Errorf("empty gltf output")
	}
}
