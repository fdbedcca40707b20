package mesh

import (
	"bytes"
	"io/ioutil"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/tok"
	"github.com/mogaika/md5_browser/utils"
	"github.com/mogaika/md5_browser/utils/gltfutils"
)

func loadBone(t *testing.T) (*Model, string) {
	t.Helper()
	data, err := ioutil.ReadFile("../testdata/bone.md5mesh")
	if err != nil {
		t.Fatal(err)
	}
	m, err := Parse(data, nil)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	return m, string(data)
}

const singleJoint = `MD5Version 10
commandline ""
numJoints 1
numMeshes 1
joints {
	"root" -1 ( 0 0 0 ) ( 0 0 0 )
}
mesh {
	shader "s"
	numverts 1
	vert 0 ( 0 0 ) 0 1
	numtris 0
	numweights 1
	weight 0 0 1 ( 1 2 3 )
}
`

func TestParseBone(t *testing.T) {
	m, _ := loadBone(t)

	if m.Version != 10 || !strings.HasPrefix(m.CommandLine, "mesh models/bone.mb") {
		t.Errorf("Unexpected header %v %q", m.Version, m.CommandLine)
	}
	if len(m.Joints) != 2 || m.Joints[1].Name != "child" || m.Joints[1].Parent != 0 {
		t.Fatalf("Unexpected joints %s", utils.SDump(m.Joints))
	}
	if len(m.Meshes) != 1 {
		t.Fatalf("Expected one mesh, got %d", len(m.Meshes))
	}

	mesh := &m.Meshes[0]
	if mesh.Shader != "models/bone/skin" {
		t.Errorf("Shader = %q", mesh.Shader)
	}

	// v is flipped
	if mesh.Vertices[0].UV != (mgl32.Vec2{0, 0.75}) || mesh.Vertices[1].UV != (mgl32.Vec2{1, 1}) {
		t.Errorf("Unexpected uvs %v %v", mesh.Vertices[0].UV, mesh.Vertices[1].UV)
	}

	// winding is reversed
	if len(mesh.Indices) != 3 || mesh.Indices[0] != 2 || mesh.Indices[1] != 1 || mesh.Indices[2] != 0 {
		t.Errorf("Unexpected indices %v", mesh.Indices)
	}

	for i, want := range []mgl32.Vec3{{0, 0, 0}, {1, 1, 0}, {1.5, 0, 1}} {
		if got := mesh.Vertices[i].BindPosition; !got.ApproxEqualThreshold(want, 1e-6) {
			t.Errorf("vertex %d bind position %v, want %v", i, got, want)
		}
	}
}

func TestSingleJointIdentity(t *testing.T) {
	m, err := Parse([]byte(singleJoint), nil)
	if err != nil {
		t.Fatal(err)
	}
	j := m.Joints[0]
	if j.Orientation.W != 1 {
		t.Errorf("Expected w = 1, got %v", j.Orientation.W)
	}
	if !j.BindPose.ApproxEqual(mgl32.Ident4()) || !j.InverseBindPose.ApproxEqual(mgl32.Ident4()) {
		t.Errorf("Expected identity bind pose, got %v / %v", j.BindPose, j.InverseBindPose)
	}
	if got := m.Meshes[0].Vertices[0].BindPosition; got != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Bind position %v, want (1 2 3)", got)
	}
}

func TestDegenerateOrientation(t *testing.T) {
	text := strings.Replace(singleJoint, `"root" -1 ( 0 0 0 ) ( 0 0 0 )`, `"root" -1 ( 0 0 0 ) ( 0.8 0.8 0 )`, 1)
	m, err := Parse([]byte(text), nil)
	if err != nil {
		t.Fatal(err)
	}
	q := m.Joints[0].Orientation
	if q.W != 0 || math.IsNaN(float64(q.W)) {
		t.Errorf("Expected clamped w = 0, got %v", q.W)
	}
}

func TestInverseBindPose(t *testing.T) {
	m, _ := loadBone(t)
	for i, j := range m.Joints {
		if !j.BindPose.Mul4(j.InverseBindPose).ApproxEqualThreshold(mgl32.Ident4(), 1e-5) {
			t.Errorf("joint %d: bind * inverse bind is not identity", i)
		}
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
		{"version", strings.Replace(bone, "MD5Version 10", "MD5Version 11", 1), true, nil},
		{"numverts", strings.Replace(bone, "numverts 3", "3", 1), true, nil},
		{"truncated", bone[:len(bone)/2], true, nil},
		{"shader", strings.Replace(bone, "shader", "shade", 1), true, nil},
		{"hierarchy", strings.Replace(bone, `"origin"	-1`, `"origin"	1`, 1), false, md5.ErrHierarchy},
		{"weight joint", strings.Replace(bone, "weight 1 1 1", "weight 1 5 1", 1), false, md5.ErrIndexOutOfRange},
		{"tri vertex", strings.Replace(bone, "tri 0 0 1 2", "tri 0 0 1 7", 1), false, md5.ErrIndexOutOfRange},
		{"vertex weights", strings.Replace(bone, "vert 2 ( 0 1 ) 2 2", "vert 2 ( 0 1 ) 3 2", 1), false, md5.ErrIndexOutOfRange},
	} {
		m, err := Parse([]byte(tc.text), nil)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if m != nil {
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

func TestTraceLogger(t *testing.T) {
	_, bone := loadBone(t)
	var buf bytes.Buffer
	if _, err := Parse([]byte(bone), utils.NewLogger(&buf)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "2 joints, 1 meshes") {
		t.Errorf("Unexpected trace output:\n%s", buf.String())
	}
}

func TestBounds(t *testing.T) {
	m, _ := loadBone(t)
	sb := m.SkeletonBounds()
	if sb.Min != (mgl32.Vec3{0, 0, 0}) || sb.Max != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("Unexpected skeleton bounds %v", sb)
	}
	mb := m.MeshBounds()
	if mb.Min != (mgl32.Vec3{0, 0, 0}) || mb.Max != (mgl32.Vec3{1.5, 1, 1}) {
		t.Errorf("Unexpected mesh bounds %v", mb)
	}
}

func TestExportObj(t *testing.T) {
	m, _ := loadBone(t)

	var buf bytes.Buffer
	if err := m.ExportObj(&buf, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, line := range []string{
		"usemtl models/bone/skin",
		"v 1.000000 1.000000 0.000000",
		"vt 0.000000 0.750000",
		"f 3/3 2/2 1/1",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("obj output has no %q:\n%s", line, out)
		}
	}

	if err := m.ExportObj(&buf, [][]mgl32.Vec3{{{0, 0, 0}}}); err == nil {
		t.Errorf("Expected error for mismatched positions")
	}
}

func TestExportGLTF(t *testing.T) {
	m, _ := loadBone(t)

	doc := gltfutils.NewDocument()
	tfme, err := m.ExportGLTF(doc, "bone", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tfme.Skeleton == nil || len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != 2 {
		t.Fatalf("Expected skin with two joints")
	}
	root := doc.Nodes[tfme.Skeleton.JointNodes[0]]
	if len(root.Children) != 1 || root.Children[0] != tfme.Skeleton.JointNodes[1] {
		t.Errorf("Unexpected joint hierarchy %v", root.Children)
	}
	child := doc.Nodes[tfme.Skeleton.JointNodes[1]]
	if child.Translation != [3]float32{1, 0, 0} {
		t.Errorf("Unexpected child translation %v", child.Translation)
	}
	if len(doc.Meshes) != 1 || doc.Nodes[tfme.MeshNodes[0]].Skin == nil {
		t.Errorf("Expected one skinned mesh")
	}

	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Errorf("Output is not binary gltf")
	}
	// joint root and mesh node
	if len(doc.Scenes[0].Nodes) != 2 {
		t.Errorf("Expected two scene roots, got %v", doc.Scenes[0].Nodes)
	}
}

func TestVertexInfluences(t *testing.T) {
	mesh := &Mesh{
		Vertices: []Vertex{{FirstWeight: 0, WeightsCount: 5}},
		Weights: []Weight{
			{Joint: 0, Bias: 0.1},
			{Joint: 1, Bias: 0.4},
			{Joint: 2, Bias: 0.05},
			{Joint: 3, Bias: 0.25},
			{Joint: 4, Bias: 0.2},
		},
	}
	joints, weights := mesh.vertexInfluences(0)
	if joints != [4]uint16{1, 3, 4, 0} {
		t.Errorf("Unexpected joints %v", joints)
	}
	var sum float32
	for _, w := range weights {
		sum += w
	}
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Errorf("Weights %v do not sum to 1", weights)
	}
}

func TestExportFbx(t *testing.T) {
	m, _ := loadBone(t)
	f, err := m.ExportFbxDefault("bone.md5mesh", nil)
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("nil builder")
	}
	fe, err := m.ExportFbx(f, "bone", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(fe.JointModelIds) != 2 || len(fe.MeshModelIds) != 1 {
		t.Errorf("Unexpected export %+v", fe)
	}
}
