package mesh

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/md5_browser/pack"
	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/utils/gltfutils"
	"github.com/mogaika/md5_browser/webutils"
)

type MarshaledMesh struct {
	Shader    string
	Vertices  int
	Triangles int
	Weights   int
}

type MarshaledModel struct {
	Version        int
	CommandLine    string
	Joints         []Joint
	Meshes         []MarshaledMesh
	SkeletonBounds Bounds
	MeshBounds     Bounds
}

func (m *Model) Marshal() (interface{}, error) {
	mm := &MarshaledModel{
		Version:        m.Version,
		CommandLine:    m.CommandLine,
		Joints:         m.Joints,
		Meshes:         make([]MarshaledMesh, len(m.Meshes)),
		SkeletonBounds: m.SkeletonBounds(),
		MeshBounds:     m.MeshBounds(),
	}
	for i := range m.Meshes {
		mm.Meshes[i] = MarshaledMesh{
			Shader:    m.Meshes[i].Shader,
			Vertices:  len(m.Meshes[i].Vertices),
			Triangles: len(m.Meshes[i].Indices) / 3,
			Weights:   len(m.Meshes[i].Weights),
		}
	}
	return mm, nil
}

func (m *Model) HttpAction(src pack.ResourceSource, w http.ResponseWriter, r *http.Request, action string) error {
	switch action {
	case "fbx":
		f, err := m.ExportFbxDefault(src.Name(), nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to export fbx")
		}
		webutils.WriteFileHeaders(w, src.Name()+".fbx")
		return f.Write(w)
	case "fbxzip":
		f, err := m.ExportFbxDefault(src.Name(), nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to export fbx")
		}
		v, _ := m.Marshal()
		summary, err := yaml.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "Failed to marshal summary")
		}
		f.AddExportFile(src.Name()+".yaml", summary)
		webutils.WriteFileHeaders(w, src.Name()+".zip")
		return f.WriteZip(w, src.Name()+".fbx")
	case "obj":
		webutils.WriteFileHeaders(w, src.Name()+".obj")
		return m.ExportObj(w, nil)
	case "gltf":
		doc := gltfutils.NewDocument()
		if _, err := m.ExportGLTF(doc, src.Name(), nil); err != nil {
			return errors.Wrapf(err, "Failed to export gltf")
		}
		webutils.WriteFileHeaders(w, src.Name()+".glb")
		return gltfutils.ExportBinary(w, doc)
	case "yaml":
		v, _ := m.Marshal()
		webutils.WriteYamlFile(w, v, src.Name())
	case "json":
		v, _ := m.Marshal()
		webutils.WriteJsonFile(w, v, src.Name())
	case "spew":
		webutils.WriteSpew(w, m)
	default:
		return errors.Errorf("Unknown action %q", action)
	}
	return nil
}

func init() {
	pack.SetHandler(".MD5MESH", func(src pack.ResourceSource, r *io.SectionReader) (interface{}, error) {
		text, err := md5.ReadSource(r)
		if err != nil {
			return nil, err
		}
		return Parse(text, md5.TraceLogger())
	})
}
