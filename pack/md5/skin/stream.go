package skin

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
)

// StreamVertex is one corner of a triangle as the renderer consumes it
type StreamVertex struct {
	UV       mgl32.Vec2
	Position mgl32.Vec3
}

const StreamStride = 5

func stream(m *mesh.Mesh, positions []mgl32.Vec3) []StreamVertex {
	result := make([]StreamVertex, len(m.Indices))
	for i, index := range m.Indices {
		result[i] = StreamVertex{
			UV:       m.Vertices[index].UV,
			Position: positions[index],
		}
	}
	return result
}

// BindStream expands mesh iMesh triangles with bind pose positions
func BindStream(model *mesh.Model, iMesh int) ([]StreamVertex, error) {
	if err := md5.CheckIndex("mesh", iMesh, len(model.Meshes)); err != nil {
		return nil, err
	}
	m := &model.Meshes[iMesh]
	return stream(m, m.BindPositions()), nil
}

// Stream expands mesh iMesh triangles with the last evaluated positions
func (inst *Instance) Stream(iMesh int) ([]StreamVertex, error) {
	if err := md5.CheckIndex("mesh", iMesh, len(inst.Model.Meshes)); err != nil {
		return nil, err
	}
	return stream(&inst.Model.Meshes[iMesh], inst.Animated[iMesh]), nil
}

// Flatten packs the stream as u v x y z per vertex
func Flatten(vertices []StreamVertex) []float32 {
	result := make([]float32, 0, len(vertices)*StreamStride)
	for _, v := range vertices {
		result = append(result, v.UV[0], v.UV[1], v.Position[0], v.Position[1], v.Position[2])
	}
	return result
}

// StreamAll concatenates the streams of every mesh, each entry is one mesh
func (inst *Instance) StreamAll() ([][]float32, error) {
	result := make([][]float32, len(inst.Model.Meshes))
	for iMesh := range inst.Model.Meshes {
		s, err := inst.Stream(iMesh)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d", iMesh)
		}
		result[iMesh] = Flatten(s)
	}
	return result, nil
}
