package fbxbuilder

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const FBX_VERSION = 7400
const FBX_CREATOR = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
const FBX_APPLICATION = "md5_browser"
const FBX_APPLICATION_VERSION = "1.0"

// exports are reproducible, so every timestamp is the epoch
const FBX_DATE_TIME_GMT = "01/01/1970 00:00:00.000"
const FBX_CREATION_TIME = "1970-01-01 00:00:00:000"

var FBX_FILE_ID []byte = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

type objectTemplate struct {
	objectType string
	template   string
	properties []*fbx.Node
}

// objectTemplates lists the object types skeleton and mesh exports emit
// together with the property template importers fall back to
func objectTemplates() []objectTemplate {
	return []objectTemplate{
		{"Model", "FbxNode", []*fbx.Node{
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
			bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
		}},
		{"NodeAttribute", "FbxSkeleton", []*fbx.Node{
			bfbx73.P("Size", "double", "Number", "", float64(1)),
		}},
		{"Geometry", "FbxMesh", []*fbx.Node{
			bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
			bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
			bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
		}},
		{"Material", "FbxSurfaceLambert", []*fbx.Node{
			bfbx73.P("ShadingModel", "KString", "", "", "Lambert"),
			bfbx73.P("DiffuseColor", "Color", "", "A", float64(1), float64(1), float64(1)),
			bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
		}},
	}
}

type FBXBuilder struct {
	f      *fbx.FBX
	c      map[string]interface{}
	lastId int64
	files  map[string][]byte

	objects     *fbx.Node
	connections *fbx.Node
	definitions *fbx.Node
}

func NewFBXBuilder(filename string) *FBXBuilder {
	f := &FBXBuilder{
		c:           make(map[string]interface{}),
		files:       make(map[string][]byte),
		lastId:      1000000,
		f:           fbx.NewFBX(FBX_VERSION),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
		definitions: newDefinitions(),
	}
	f.Root().AddNodes(
		newHeaderExtension(filename),
		bfbx73.FileId(FBX_FILE_ID),
		bfbx73.CreationTime(FBX_CREATION_TIME),
		bfbx73.Creator(FBX_CREATOR),
		newGlobalSettings(),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		f.definitions,
		f.objects,
		f.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
	return f
}

func newHeaderExtension(filename string) *fbx.Node {
	info := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
	)
	for _, group := range []string{"Original", "LastSaved"} {
		info.AddNodes(
			bfbx73.P(group, "Compound", "", ""),
			bfbx73.P(group+"|ApplicationVendor", "KString", "", "", FBX_APPLICATION),
			bfbx73.P(group+"|ApplicationName", "KString", "", "", FBX_APPLICATION),
			bfbx73.P(group+"|ApplicationVersion", "KString", "", "", FBX_APPLICATION_VERSION),
			bfbx73.P(group+"|DateTime_GMT", "DateTime", "", "", FBX_DATE_TIME_GMT),
		)
	}
	info.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)))

	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(FBX_VERSION),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(1970),
			bfbx73.Month(1),
			bfbx73.Day(1),
			bfbx73.Hour(0),
			bfbx73.Minute(0),
			bfbx73.Second(0),
			bfbx73.Millisecond(0),
		),
		bfbx73.Creator(FBX_CREATOR),
		bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			info,
		),
	)
}

// md5 data is z up, right handed
func newGlobalSettings() *fbx.Node {
	return bfbx73.GlobalSettings().AddNodes(
		bfbx73.Version(1000),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("UpAxis", "int", "Integer", "", int32(2)),
			bfbx73.P("UpAxisSign", "int", "Integer", "", int32(1)),
			bfbx73.P("FrontAxis", "int", "Integer", "", int32(1)),
			bfbx73.P("FrontAxisSign", "int", "Integer", "", int32(-1)),
			bfbx73.P("CoordAxis", "int", "Integer", "", int32(0)),
			bfbx73.P("CoordAxisSign", "int", "Integer", "", int32(1)),
			bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(1)),
		),
	)
}

func newDefinitions() *fbx.Node {
	definitions := bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
	)
	for _, ot := range objectTemplates() {
		definitions.AddNode(bfbx73.ObjectType(ot.objectType).AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate(ot.template).AddNodes(
				bfbx73.Properties70().AddNodes(ot.properties...),
			),
		))
	}
	return definitions
}

// countDefinitions fills object counts, adding a bare ObjectType for
// anything without a template
func (f *FBXBuilder) countDefinitions() {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	total := int32(1) // GlobalSettings
	for _, name := range names {
		total += counts[name]

		var objectType *fbx.Node
		for _, ot := range f.definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			f.definitions.AddNode(objectType)
		}
		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = counts[name]
	}
	f.definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.f.Root
}

// GetCachedOr returns the value stored under key, creating it on first use
func (f *FBXBuilder) GetCachedOr(key string, create func() interface{}) interface{} {
	if v, e := f.c[key]; e {
		return v
	}
	v := create()
	f.c[key] = v
	return v
}

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

// Write encodes the document. The encoder patches node offsets relative
// to the start of the stream, so anything else goes through a temporary file.
func (f *FBXBuilder) Write(w io.Writer) error {
	f.countDefinitions()

	if ws, ok := w.(io.WriteSeeker); ok {
		if pos, err := ws.Seek(0, io.SeekCurrent); err == nil && pos == 0 {
			return fbx.Write(ws, f.f)
		}
	}

	tempFile, err := ioutil.TempFile("", "fbxexport.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Failed to create temp file")
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if err := fbx.Write(tempFile, f.f); err != nil {
		return err
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tempFile)
	return err
}

// AddExportFile attaches a side file written next to the fbx by WriteZip
func (f *FBXBuilder) AddExportFile(name string, data []byte) {
	f.files[name] = data
}

func (f *FBXBuilder) WriteZip(w io.Writer, name string) error {
	zw := zip.NewWriter(w)

	fbxW, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Can't create zip fbx for %q", name)
	}
	if err := f.Write(fbxW); err != nil {
		return errors.Wrapf(err, "Fbx exporting failed")
	}

	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			return errors.Wrapf(err, "Can't create zip for %q", name)
		}
		if _, err := fw.Write(f.files[name]); err != nil {
			return errors.Wrapf(err, "Can't write zip for %q", name)
		}
	}

	return zw.Close()
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }
