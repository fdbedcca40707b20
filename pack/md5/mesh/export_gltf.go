package mesh

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const gltfMaxInfluences = 4

type GLTFSkeletonExported struct {
	JointNodes []uint32
	SkinIndex  uint32
}

type GLTFMeshExported struct {
	Meshes    []uint32
	MeshNodes []uint32
	Skeleton  *GLTFSkeletonExported
}

// LocalBindTransform returns joint bind pose relative to its parent
func (m *Model) LocalBindTransform(iJoint int) (mgl32.Vec3, mgl32.Quat) {
	j := &m.Joints[iJoint]
	if j.Parent < 0 {
		return j.Origin, j.Orientation
	}
	p := &m.Joints[j.Parent]
	pInv := p.Orientation.Inverse()
	return pInv.Rotate(j.Origin.Sub(p.Origin)), pInv.Mul(j.Orientation).Normalize()
}

func (m *Model) ExportGLTFSkeleton(doc *gltf.Document, name string) *GLTFSkeletonExported {
	tfse := &GLTFSkeletonExported{
		JointNodes: make([]uint32, len(m.Joints)),
	}

	inverseBind := make([][4][4]float32, len(m.Joints))
	for iJoint := range m.Joints {
		joint := &m.Joints[iJoint]
		translation, rotation := m.LocalBindTransform(iJoint)

		tfse.JointNodes[iJoint] = uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        joint.Name,
			Translation: translation,
			Rotation:    rotation.V.Vec4(rotation.W),
			Scale:       [3]float32{1, 1, 1},
		})
		if joint.Parent >= 0 {
			parentNode := doc.Nodes[tfse.JointNodes[joint.Parent]]
			parentNode.Children = append(parentNode.Children, tfse.JointNodes[iJoint])
		}

		for col := 0; col < 4; col++ {
			copy(inverseBind[iJoint][col][:], joint.InverseBindPose[col*4:col*4+4])
		}
	}

	skin := &gltf.Skin{
		Name:                name,
		InverseBindMatrices: gltf.Index(modeler.WriteAccessor(doc, gltf.TargetNone, inverseBind)),
		Joints:              tfse.JointNodes,
	}
	for iJoint := range m.Joints {
		if m.Joints[iJoint].Parent < 0 {
			skin.Skeleton = gltf.Index(tfse.JointNodes[iJoint])
			break
		}
	}

	tfse.SkinIndex = uint32(len(doc.Skins))
	doc.Skins = append(doc.Skins, skin)
	return tfse
}

// strongest influences first, renormalized to sum 1
func (m *Mesh) vertexInfluences(iVertex int) ([4]uint16, [4]float32) {
	weights := append([]Weight(nil), m.VertexWeights(iVertex)...)
	sort.SliceStable(weights, func(i, j int) bool { return weights[i].Bias > weights[j].Bias })
	if len(weights) > gltfMaxInfluences {
		weights = weights[:gltfMaxInfluences]
	}

	var joints [4]uint16
	var biases [4]float32
	var sum float32
	for i, w := range weights {
		joints[i] = uint16(w.Joint)
		biases[i] = w.Bias
		sum += w.Bias
	}
	if sum > 0 {
		for i := range biases {
			biases[i] /= sum
		}
	}
	return joints, biases
}

// ExportGLTF adds meshes, materials and optionally the skinned skeleton to doc.
// When positions are given the meshes are written as static geometry.
func (m *Model) ExportGLTF(doc *gltf.Document, name string, positions [][]mgl32.Vec3) (*GLTFMeshExported, error) {
	if positions != nil && len(positions) != len(m.Meshes) {
		return nil, errors.Errorf("Got positions for %d meshes, have %d", len(positions), len(m.Meshes))
	}

	tfme := &GLTFMeshExported{}
	if positions == nil && len(m.Joints) != 0 {
		tfme.Skeleton = m.ExportGLTFSkeleton(doc, name)
	}

	for iMesh := range m.Meshes {
		mesh := &m.Meshes[iMesh]
		verticesCount := len(mesh.Vertices)
		if positions != nil && len(positions[iMesh]) != verticesCount {
			return nil, errors.Errorf("Mesh %d: got %d positions for %d vertices", iMesh, len(positions[iMesh]), verticesCount)
		}

		attributes := make(map[string]uint32)
		{
			vpositions := make([][3]float32, verticesCount)
			uvs := make([][2]float32, verticesCount)
			for iVertex := range mesh.Vertices {
				if positions != nil {
					vpositions[iVertex] = positions[iMesh][iVertex]
				} else {
					vpositions[iVertex] = mesh.Vertices[iVertex].BindPosition
				}
				uvs[iVertex] = mesh.Vertices[iVertex].UV
			}
			attributes["POSITION"] = modeler.WritePosition(doc, vpositions)
			attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, uvs)
		}

		if tfme.Skeleton != nil {
			joints := make([][4]uint16, verticesCount)
			weights := make([][4]float32, verticesCount)
			for iVertex := range mesh.Vertices {
				joints[iVertex], weights[iVertex] = mesh.vertexInfluences(iVertex)
			}
			attributes["JOINTS_0"] = modeler.WriteJoints(doc, joints)
			attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, weights)
		}

		indicesAccessor := modeler.WriteIndices(doc, mesh.Indices)

		materialIndex := uint32(len(doc.Materials))
		doc.Materials = append(doc.Materials, &gltf.Material{
			Name: mesh.Shader,
		})

		meshName := fmt.Sprintf("%s_m%.2d", name, iMesh)
		tfme.Meshes = append(tfme.Meshes, uint32(len(doc.Meshes)))
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: meshName,
			Primitives: []*gltf.Primitive{
				&gltf.Primitive{
					Indices:    &indicesAccessor,
					Attributes: attributes,
					Material:   gltf.Index(materialIndex),
				},
			},
		})

		node := &gltf.Node{
			Name:  meshName,
			Mesh:  gltf.Index(tfme.Meshes[iMesh]),
			Scale: [3]float32{1, 1, 1},
		}
		if tfme.Skeleton != nil {
			node.Skin = gltf.Index(tfme.Skeleton.SkinIndex)
		}
		tfme.MeshNodes = append(tfme.MeshNodes, uint32(len(doc.Nodes)))
		doc.Nodes = append(doc.Nodes, node)
	}

	return tfme, nil
}
