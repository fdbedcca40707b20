package mesh

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ExportObj writes every mesh as an obj object.
// positions overrides vertex positions per mesh, nil means bind pose.
func (m *Model) ExportObj(_w io.Writer, positions [][]mgl32.Vec3) error {
	if positions != nil && len(positions) != len(m.Meshes) {
		return errors.Errorf("Got positions for %d meshes, have %d", len(positions), len(m.Meshes))
	}

	var werr error
	w := func(format string, args ...interface{}) {
		if werr == nil {
			_, werr = _w.Write(([]byte)(fmt.Sprintf(format+"\n", args...)))
		}
	}

	w("# md5 model, %d joints, %d meshes", len(m.Joints), len(m.Meshes))

	iV := uint32(1)
	for iMesh := range m.Meshes {
		mesh := &m.Meshes[iMesh]

		if positions != nil && len(positions[iMesh]) != len(mesh.Vertices) {
			return errors.Errorf("Mesh %d: got %d positions for %d vertices", iMesh, len(positions[iMesh]), len(mesh.Vertices))
		}

		w("o m%.2d", iMesh)
		w("usemtl %s", mesh.Shader)

		for iVertex := range mesh.Vertices {
			pos := mesh.Vertices[iVertex].BindPosition
			if positions != nil {
				pos = positions[iMesh][iVertex]
			}
			w("v %f %f %f", pos[0], pos[1], pos[2])
		}
		for _, vertex := range mesh.Vertices {
			w("vt %f %f", vertex.UV[0], vertex.UV[1])
		}
		for iIndex := 0; iIndex+2 < len(mesh.Indices); iIndex += 3 {
			indexes := mesh.Indices[iIndex : iIndex+3]
			w("f %v/%v %v/%v %v/%v",
				iV+indexes[0], iV+indexes[0],
				iV+indexes[1], iV+indexes[1],
				iV+indexes[2], iV+indexes[2])
		}

		iV += uint32(len(mesh.Vertices))
	}

	return werr
}
