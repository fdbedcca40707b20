package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/utils"
	"github.com/mogaika/md5_browser/utils/fbxbuilder"
)

type FbxExporter struct {
	JointModelIds []int64
	MeshModelIds  []int64
}

func fbxTransformProperties(translation mgl32.Vec3, rotation mgl32.Quat) *fbx.Node {
	euler := utils.RadiansToDegreeV3(utils.QuatToEuler(rotation))
	return bfbx73.Properties70().AddNodes(
		bfbx73.P("InheritType", "enum", "", "", int32(1)),
		bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
		bfbx73.P("Lcl Translation", "Lcl Translation", "", "A",
			float64(translation[0]), float64(translation[1]), float64(translation[2])),
		bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A",
			float64(euler[0]), float64(euler[1]), float64(euler[2])),
		bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
	)
}

func (m *Model) exportFbxJoints(f *fbxbuilder.FBXBuilder, fe *FbxExporter) {
	fe.JointModelIds = make([]int64, len(m.Joints))
	for iJoint := range m.Joints {
		joint := &m.Joints[iJoint]
		translation, rotation := m.LocalBindTransform(iJoint)

		modelId := f.GenerateId()
		fe.JointModelIds[iJoint] = modelId

		model := bfbx73.Model(modelId, joint.Name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			fbxTransformProperties(translation, rotation),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)
		nodeAttribute := bfbx73.NodeAttribute(f.GenerateId(), joint.Name+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
			bfbx73.TypeFlags("Skeleton"),
		)

		parentId := int64(0)
		if joint.Parent >= 0 {
			parentId = fe.JointModelIds[joint.Parent]
		}

		f.AddObjects(model, nodeAttribute)
		f.AddConnections(
			bfbx73.C("OO", nodeAttribute.Properties[0].(int64), modelId),
			bfbx73.C("OO", modelId, parentId),
		)
	}
}

func (m *Model) exportFbxMesh(f *fbxbuilder.FBXBuilder, fe *FbxExporter, name string, iMesh int, positions []mgl32.Vec3) {
	mesh := &m.Meshes[iMesh]

	vertices := make([]float64, 0, len(mesh.Vertices)*3)
	uv := make([]float64, 0, len(mesh.Vertices)*2)
	for iVertex := range mesh.Vertices {
		pos := mesh.Vertices[iVertex].BindPosition
		if positions != nil {
			pos = positions[iVertex]
		}
		vertices = append(vertices, float64(pos[0]), float64(pos[1]), float64(pos[2]))
		uv = append(uv, float64(mesh.Vertices[iVertex].UV[0]), float64(mesh.Vertices[iVertex].UV[1]))
	}

	indexes := make([]int32, len(mesh.Indices))
	uvindexes := make([]int32, len(mesh.Indices))
	for i, index := range mesh.Indices {
		indexes[i] = int32(index)
		uvindexes[i] = int32(index)
		// last polygon vertex is stored as -(index)-1
		if i%3 == 2 {
			indexes[i] = -int32(index) - 1
		}
	}

	geometryId := f.GenerateId()
	geometry := bfbx73.Geometry(geometryId, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		bfbx73.LayerElementUV(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygonVertex"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.UV(uv),
			bfbx73.UVIndex(uvindexes),
		),
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("AllSame"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials([]int32{0}),
		),
		bfbx73.Layer(0).AddNodes(
			bfbx73.Version(100),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementUV"),
				bfbx73.TypedIndex(0),
			),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementMaterial"),
				bfbx73.TypedIndex(0),
			),
		),
	)

	modelId := f.GenerateId()
	model := bfbx73.Model(modelId, fmt.Sprintf("%s_m%.2d\x00\x01Model", name, iMesh), "Mesh").AddNodes(
		bfbx73.Version(232),
		fbxTransformProperties(mgl32.Vec3{}, mgl32.QuatIdent()),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)

	materialId := f.GetCachedOr("material:"+mesh.Shader, func() interface{} {
		id := f.GenerateId()
		f.AddObjects(bfbx73.Material(id, mesh.Shader+"\x00\x01Material", "").AddNodes(
			bfbx73.Version(102),
			bfbx73.ShadingModel("lambert"),
			bfbx73.MultiLayer(0),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
				bfbx73.P("DiffuseColor", "Color", "", "A", float64(1), float64(1), float64(1)),
			),
		))
		return id
	}).(int64)

	f.AddObjects(model, geometry)
	f.AddConnections(
		bfbx73.C("OO", geometryId, modelId),
		bfbx73.C("OO", materialId, modelId),
		bfbx73.C("OO", modelId, int64(0)),
	)
	fe.MeshModelIds = append(fe.MeshModelIds, modelId)
}

// ExportFbx adds the bind skeleton as limb nodes and every mesh as geometry.
// positions overrides vertex positions per mesh, nil means bind pose.
func (m *Model) ExportFbx(f *fbxbuilder.FBXBuilder, name string, positions [][]mgl32.Vec3) (*FbxExporter, error) {
	if positions != nil && len(positions) != len(m.Meshes) {
		return nil, errors.Errorf("Got positions for %d meshes, have %d", len(positions), len(m.Meshes))
	}

	fe := &FbxExporter{}
	m.exportFbxJoints(f, fe)
	for iMesh := range m.Meshes {
		var meshPositions []mgl32.Vec3
		if positions != nil {
			meshPositions = positions[iMesh]
			if len(meshPositions) != len(m.Meshes[iMesh].Vertices) {
				return nil, errors.Errorf("Mesh %d: got %d positions for %d vertices",
					iMesh, len(meshPositions), len(m.Meshes[iMesh].Vertices))
			}
		}
		m.exportFbxMesh(f, fe, name, iMesh, meshPositions)
	}
	return fe, nil
}

func (m *Model) ExportFbxDefault(name string, positions [][]mgl32.Vec3) (*fbxbuilder.FBXBuilder, error) {
	f := fbxbuilder.NewFBXBuilder(name)
	if _, err := m.ExportFbx(f, name, positions); err != nil {
		return nil, err
	}
	return f, nil
}
