package main

import (
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/config"
	"github.com/mogaika/md5_browser/pack"
	"github.com/mogaika/md5_browser/pack/md5/anim"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
	"github.com/mogaika/md5_browser/pack/md5/skin"
	"github.com/mogaika/md5_browser/utils/gltfutils"
	"github.com/mogaika/md5_browser/vfs"
)

func load(path string) (interface{}, error) {
	d := vfs.NewDirectoryDriver(filepath.Dir(path))
	return pack.GetInstanceHandler(d, filepath.Base(path))
}

func loadModel(path string) (*mesh.Model, error) {
	data, err := load(path)
	if err != nil {
		return nil, err
	}
	if model, ok := data.(*mesh.Model); ok {
		return model, nil
	}
	return nil, errors.Errorf("%s is not a md5 mesh", path)
}

func loadClip(path string) (*anim.Clip, error) {
	data, err := load(path)
	if err != nil {
		return nil, err
	}
	if clip, ok := data.(*anim.Clip); ok {
		return clip, nil
	}
	return nil, errors.Errorf("%s is not a md5 animation", path)
}

// export writes the bind pose when inst is nil
func export(w io.Writer, model *mesh.Model, inst *skin.Instance, name, format string) error {
	switch format {
	case "obj":
		if inst != nil {
			return inst.ExportObjFrame(w)
		}
		return model.ExportObj(w, nil)
	case "gltf":
		doc := gltfutils.NewDocument()
		if inst != nil {
			if err := inst.ExportGLTF(doc, name); err != nil {
				return err
			}
		} else if _, err := model.ExportGLTF(doc, name, nil); err != nil {
			return err
		}
		return gltfutils.ExportBinary(w, doc)
	case "fbx":
		var positions [][]mgl32.Vec3
		if inst != nil {
			positions = inst.Animated
		}
		f, err := model.ExportFbxDefault(name, positions)
		if err != nil {
			return err
		}
		return f.Write(w)
	default:
		return errors.Errorf("Unknown format %q", format)
	}
}

func run(meshPath, animPath string, frame int, format, out string) error {
	model, err := loadModel(meshPath)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(meshPath), filepath.Ext(meshPath))

	var inst *skin.Instance
	if animPath != "" {
		clip, err := loadClip(animPath)
		if err != nil {
			return err
		}
		if inst, err = skin.NewInstance(name, model, clip); err != nil {
			return err
		}
		if err := inst.EvaluateFrame(frame); err != nil {
			return err
		}
	}

	ext := map[string]string{"obj": ".obj", "gltf": ".glb", "fbx": ".fbx"}[format]
	if out == "" {
		out = name + ext
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", out)
	}
	defer f.Close()

	if err := export(f, model, inst, name, format); err != nil {
		return errors.Wrapf(err, "Failed to export %s", format)
	}
	log.Printf("Exported %s", out)
	return nil
}

func main() {
	var meshPath, animPath, format, out, encoding string
	var frame int
	flag.StringVar(&meshPath, "mesh", "", "Path to md5mesh")
	flag.StringVar(&animPath, "anim", "", "Path to md5anim, bind pose is exported if empty")
	flag.IntVar(&frame, "frame", 0, "Animation frame")
	flag.StringVar(&format, "format", "gltf", "obj, gltf or fbx")
	flag.StringVar(&out, "o", "", "Output file")
	flag.StringVar(&encoding, "encoding", "", "Source text encoding")
	flag.Parse()

	if meshPath == "" {
		flag.PrintDefaults()
		return
	}
	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatal(err)
		}
	}

	if err := run(meshPath, animPath, frame, format, out); err != nil {
		log.Fatal(err)
	}
}
