package web

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/config"
	"github.com/mogaika/md5_browser/pack"
	"github.com/mogaika/md5_browser/pack/md5/anim"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
	"github.com/mogaika/md5_browser/pack/md5/skin"
	"github.com/mogaika/md5_browser/status"
	"github.com/mogaika/md5_browser/utils"
	"github.com/mogaika/md5_browser/utils/gltfutils"
	"github.com/mogaika/md5_browser/webutils"
)

// skin instances are not safe for concurrent use, so every one has a lock
type playback struct {
	lock sync.Mutex
	inst *skin.Instance
}

type playbackRegistry struct {
	lock      sync.Mutex
	names     utils.RandomNameGenerator
	instances map[string]*playback
}

var gPlayback = &playbackRegistry{instances: make(map[string]*playback)}

func (pr *playbackRegistry) Create(model *mesh.Model, clip *anim.Clip) (string, error) {
	name := pr.names.RandomName()
	inst, err := skin.NewInstance(name, model, clip)
	if err != nil {
		pr.names.Release(name)
		return "", err
	}

	pr.lock.Lock()
	defer pr.lock.Unlock()
	pr.instances[name] = &playback{inst: inst}
	return name, nil
}

func (pr *playbackRegistry) Get(name string) (*playback, error) {
	pr.lock.Lock()
	defer pr.lock.Unlock()
	if p, ok := pr.instances[name]; ok {
		return p, nil
	}
	return nil, errors.Errorf("Playback instance %q not found", name)
}

func (pr *playbackRegistry) Release(name string) bool {
	pr.lock.Lock()
	defer pr.lock.Unlock()
	if _, ok := pr.instances[name]; !ok {
		return false
	}
	delete(pr.instances, name)
	pr.names.Release(name)
	return true
}

// evaluate poses the instance at frame, or at playback time t seconds
// when the t query parameter is given
func (p *playback) evaluate(r *http.Request) error {
	if t := r.URL.Query().Get("t"); t != "" {
		seconds, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return errors.Wrapf(err, "Invalid time %q", t)
		}
		return p.inst.EvaluateTime(seconds, config.Get().Loop)
	}
	frame, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil {
		return errors.Wrapf(err, "Invalid frame %q", mux.Vars(r)["frame"])
	}
	return p.inst.EvaluateFrame(frame)
}

func loadModelAndClip(meshFile, animFile string) (*mesh.Model, *anim.Clip, error) {
	meshData, err := pack.GetInstanceHandler(ServerDirectory, meshFile)
	if err != nil {
		return nil, nil, err
	}
	model, ok := meshData.(*mesh.Model)
	if !ok {
		return nil, nil, errors.Errorf("File %s is not a md5 mesh", meshFile)
	}
	animData, err := pack.GetInstanceHandler(ServerDirectory, animFile)
	if err != nil {
		return nil, nil, err
	}
	clip, ok := animData.(*anim.Clip)
	if !ok {
		return nil, nil, errors.Errorf("File %s is not a md5 animation", animFile)
	}
	return model, clip, nil
}

func HandlerAjaxPlayCreate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	model, clip, err := loadModelAndClip(vars["mesh"], vars["anim"])
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	name, err := gPlayback.Create(model, clip)
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to create playback"))
		return
	}
	status.Info("Playing %s on %s as %s", vars["anim"], vars["mesh"], name)

	webutils.WriteJson(w, &struct {
		Instance  string
		Frames    int
		FrameRate int
	}{name, len(clip.Frames), clip.FrameRate})
}

type PlayFrame struct {
	Instance string
	Frame    int
	Stride   int
	// per mesh, u v x y z per triangle corner
	Streams [][]float32
}

func HandlerAjaxPlayFrame(w http.ResponseWriter, r *http.Request) {
	p, err := gPlayback.Get(mux.Vars(r)["instance"])
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.evaluate(r); err != nil {
		webutils.WriteError(w, err)
		return
	}
	streams, err := p.inst.StreamAll()
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, &PlayFrame{
		Instance: p.inst.Name,
		Frame:    p.inst.Frame,
		Stride:   skin.StreamStride,
		Streams:  streams,
	})
}

func HandlerAjaxPlayRelease(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["instance"]
	webutils.WriteJson(w, map[string]bool{"released": gPlayback.Release(name)})
}

func HandlerActionPlay(w http.ResponseWriter, r *http.Request) {
	p, err := gPlayback.Get(mux.Vars(r)["instance"])
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.evaluate(r); err != nil {
		webutils.WriteError(w, err)
		return
	}

	name := p.inst.Name + "_" + strconv.Itoa(p.inst.Frame)
	switch format := mux.Vars(r)["format"]; format {
	case "obj":
		webutils.WriteFileHeaders(w, name+".obj")
		err = p.inst.ExportObjFrame(w)
	case "fbx":
		f, ferr := p.inst.ExportFbxFrame(name)
		if ferr != nil {
			webutils.WriteError(w, ferr)
			return
		}
		webutils.WriteFileHeaders(w, name+".fbx")
		err = f.Write(w)
	case "gltf":
		doc := gltfutils.NewDocument()
		if gerr := p.inst.ExportGLTF(doc, p.inst.Name); gerr != nil {
			webutils.WriteError(w, gerr)
			return
		}
		webutils.WriteFileHeaders(w, p.inst.Name+".glb")
		err = gltfutils.ExportBinary(w, doc)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown format %q", format))
		return
	}
	if err != nil {
		status.Error("Export of %s failed: %v", name, err)
	}
}
