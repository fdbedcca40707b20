package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/md5_browser/utils"
)

// ComputeBindAggregate fills Vertex.BindPosition with the weighted sum of
// every weight position carried into model space by its joint bind pose.
func (m *Model) ComputeBindAggregate() {
	for iMesh := range m.Meshes {
		mesh := &m.Meshes[iMesh]
		for iVertex := range mesh.Vertices {
			var pos mgl32.Vec3
			for _, w := range mesh.VertexWeights(iVertex) {
				p := utils.TransformPoint(m.Joints[w.Joint].BindPose, w.Position)
				pos = pos.Add(p.Mul(w.Bias))
			}
			mesh.Vertices[iVertex].BindPosition = pos
		}
	}
}

func (m *Mesh) BindPositions() []mgl32.Vec3 {
	positions := make([]mgl32.Vec3, len(m.Vertices))
	for i := range m.Vertices {
		positions[i] = m.Vertices[i].BindPosition
	}
	return positions
}

type Bounds struct {
	Min, Max mgl32.Vec3
}

func (b *Bounds) extend(p mgl32.Vec3, first bool) {
	if first {
		b.Min, b.Max = p, p
		return
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// SkeletonBounds spans the joint origins of the bind skeleton
func (m *Model) SkeletonBounds() Bounds {
	var b Bounds
	for i := range m.Joints {
		b.extend(m.Joints[i].Origin, i == 0)
	}
	return b
}

// MeshBounds spans every bind position of every mesh
func (m *Model) MeshBounds() Bounds {
	var b Bounds
	first := true
	for iMesh := range m.Meshes {
		for _, v := range m.Meshes[iMesh].Vertices {
			b.extend(v.BindPosition, first)
			first = false
		}
	}
	return b
}
