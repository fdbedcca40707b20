package gltfutils

import (
	"io"

	"github.com/qmuntal/gltf"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// AddRootsToScene puts every node that is nobody's child into the default scene
func AddRootsToScene(doc *gltf.Document) {
	isChild := make(map[uint32]bool)
	for _, node := range doc.Nodes {
		for _, child := range node.Children {
			isChild[child] = true
		}
	}

	inScene := make(map[uint32]bool)
	for _, n := range doc.Scenes[0].Nodes {
		inScene[n] = true
	}
	for iNode := range doc.Nodes {
		if !isChild[uint32(iNode)] && !inScene[uint32(iNode)] {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
		}
	}
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	AddRootsToScene(doc)

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
