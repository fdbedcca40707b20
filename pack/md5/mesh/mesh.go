package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/tok"
	"github.com/mogaika/md5_browser/utils"
)

type Joint struct {
	Name        string
	Parent      int
	Origin      mgl32.Vec3
	Orientation mgl32.Quat

	BindPose        mgl32.Mat4 `json:"-"`
	InverseBindPose mgl32.Mat4 `json:"-"`
}

type Weight struct {
	Joint    int
	Bias     float32
	Position mgl32.Vec3 // in joint space
}

type Vertex struct {
	UV           mgl32.Vec2
	FirstWeight  int
	WeightsCount int

	// bind pose position aggregated from weights
	BindPosition mgl32.Vec3
}

type Mesh struct {
	Shader   string
	Vertices []Vertex
	Indices  []uint32
	Weights  []Weight
}

func (m *Mesh) VertexWeights(iVertex int) []Weight {
	v := &m.Vertices[iVertex]
	return m.Weights[v.FirstWeight : v.FirstWeight+v.WeightsCount]
}

type Model struct {
	Version     int
	CommandLine string
	Joints      []Joint
	Meshes      []Mesh
}

func (m *Model) JointIndex(name string) int {
	for i := range m.Joints {
		if m.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

func checkCount(what string, n int) error {
	if n < 0 {
		return &tok.FormatError{Expected: "non negative " + what, Got: fmt.Sprint(n)}
	}
	return nil
}

func (m *Model) parseHeader(r *tok.Reader) (numJoints, numMeshes int, err error) {
	if m.Version, err = r.KeyInt("MD5Version"); err != nil {
		return
	}
	if m.Version != md5.Version {
		err = &tok.FormatError{Expected: fmt.Sprintf("MD5Version %d", md5.Version), Got: fmt.Sprint(m.Version)}
		return
	}
	if err = r.Keyword("commandline"); err != nil {
		return
	}
	if m.CommandLine, err = r.Word(); err != nil {
		return
	}
	if numJoints, err = r.KeyInt("numJoints"); err != nil {
		return
	}
	if err = checkCount("numJoints", numJoints); err != nil {
		return
	}
	if numMeshes, err = r.KeyInt("numMeshes"); err != nil {
		return
	}
	err = checkCount("numMeshes", numMeshes)
	return
}

func parseJoint(r *tok.Reader, j *Joint) (err error) {
	if j.Name, err = r.Word(); err != nil {
		return
	}
	if j.Parent, err = r.Int(); err != nil {
		return
	}
	if j.Origin, err = r.Vec3(); err != nil {
		return
	}
	var q mgl32.Vec3
	if q, err = r.Vec3(); err != nil {
		return
	}
	j.Orientation = utils.QuatFromXYZ(q)
	j.BindPose = utils.MatrixFrom(j.Orientation, j.Origin)
	j.InverseBindPose = j.BindPose.Inv()
	return
}

func (m *Model) parseJoints(r *tok.Reader, count int) error {
	if err := r.Keyword("joints"); err != nil {
		return err
	}
	if err := r.Keyword("{"); err != nil {
		return err
	}
	m.Joints = make([]Joint, count)
	for i := range m.Joints {
		if err := parseJoint(r, &m.Joints[i]); err != nil {
			return errors.Wrapf(err, "Failed to parse joint %d", i)
		}
	}
	return r.Keyword("}")
}

func parseMesh(r *tok.Reader, mesh *Mesh, _l *utils.Logger) (err error) {
	if err = r.Keyword("mesh"); err != nil {
		return
	}
	if err = r.Keyword("{"); err != nil {
		return
	}
	if err = r.Keyword("shader"); err != nil {
		return
	}
	if mesh.Shader, err = r.Word(); err != nil {
		return
	}

	var count int
	if count, err = r.KeyInt("numverts"); err != nil {
		return
	}
	if err = checkCount("numverts", count); err != nil {
		return
	}
	mesh.Vertices = make([]Vertex, count)
	for i := range mesh.Vertices {
		v := &mesh.Vertices[i]
		var index int
		if index, err = r.KeyInt("vert"); err != nil {
			return
		}
		if index != i {
			_l.Printf("vert %d declared as %d", i, index)
		}
		if v.UV, err = r.Vec2(); err != nil {
			return
		}
		v.UV[1] = 1 - v.UV[1]
		if v.FirstWeight, err = r.Int(); err != nil {
			return
		}
		if v.WeightsCount, err = r.Int(); err != nil {
			return
		}
	}

	if count, err = r.KeyInt("numtris"); err != nil {
		return
	}
	if err = checkCount("numtris", count); err != nil {
		return
	}
	mesh.Indices = make([]uint32, 0, count*3)
	for i := 0; i < count; i++ {
		var tri [3]int
		if _, err = r.KeyInt("tri"); err != nil {
			return
		}
		for j := range tri {
			if tri[j], err = r.Int(); err != nil {
				return
			}
			if err = md5.CheckIndex("triangle vertex", tri[j], len(mesh.Vertices)); err != nil {
				return errors.Wrapf(err, "tri %d", i)
			}
		}
		// stored in reverse winding
		mesh.Indices = append(mesh.Indices, uint32(tri[2]), uint32(tri[1]), uint32(tri[0]))
	}

	if count, err = r.KeyInt("numweights"); err != nil {
		return
	}
	if err = checkCount("numweights", count); err != nil {
		return
	}
	mesh.Weights = make([]Weight, count)
	for i := range mesh.Weights {
		w := &mesh.Weights[i]
		if _, err = r.KeyInt("weight"); err != nil {
			return
		}
		if w.Joint, err = r.Int(); err != nil {
			return
		}
		if w.Bias, err = r.Float(); err != nil {
			return
		}
		if w.Position, err = r.Vec3(); err != nil {
			return
		}
	}

	return r.Keyword("}")
}

func (m *Model) validate() error {
	for i := range m.Joints {
		if err := md5.CheckParent(i, m.Joints[i].Parent); err != nil {
			return errors.Wrapf(err, "joint %q", m.Joints[i].Name)
		}
	}

	for iMesh := range m.Meshes {
		mesh := &m.Meshes[iMesh]
		for iWeight := range mesh.Weights {
			if err := md5.CheckIndex("joint", mesh.Weights[iWeight].Joint, len(m.Joints)); err != nil {
				return errors.Wrapf(err, "mesh %d weight %d", iMesh, iWeight)
			}
		}
		for iVertex := range mesh.Vertices {
			v := &mesh.Vertices[iVertex]
			if v.FirstWeight < 0 || v.WeightsCount < 0 || v.FirstWeight+v.WeightsCount > len(mesh.Weights) {
				return errors.Wrapf(md5.ErrIndexOutOfRange, "mesh %d vertex %d weights [%d, %d) exceed %d",
					iMesh, iVertex, v.FirstWeight, v.FirstWeight+v.WeightsCount, len(mesh.Weights))
			}
		}
	}
	return nil
}

// Parse reads md5mesh text, validates references and computes bind positions.
// _l may be nil.
func Parse(text []byte, _l *utils.Logger) (*Model, error) {
	r, err := tok.NewReader(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to tokenize")
	}

	m := &Model{}
	numJoints, numMeshes, err := m.parseHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse header")
	}
	_l.Printf("md5mesh v%d: %d joints, %d meshes, commandline %q", m.Version, numJoints, numMeshes, m.CommandLine)

	if err := m.parseJoints(r, numJoints); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse joints")
	}

	m.Meshes = make([]Mesh, numMeshes)
	for i := range m.Meshes {
		if err := parseMesh(r, &m.Meshes[i], _l); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse mesh %d", i)
		}
		_l.Printf("mesh %d %q: %d verts, %d tris, %d weights", i, m.Meshes[i].Shader,
			len(m.Meshes[i].Vertices), len(m.Meshes[i].Indices)/3, len(m.Meshes[i].Weights))
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	m.ComputeBindAggregate()

	return m, nil
}
