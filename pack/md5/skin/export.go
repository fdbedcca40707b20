package skin

import (
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/md5_browser/pack/md5/pose"
	"github.com/mogaika/md5_browser/utils/fbxbuilder"
)

func (inst *Instance) ExportObjFrame(w io.Writer) error {
	return inst.Model.ExportObj(w, inst.Animated)
}

func (inst *Instance) ExportFbxFrame(name string) (*fbxbuilder.FBXBuilder, error) {
	return inst.Model.ExportFbxDefault(name, inst.Animated)
}

// ExportGLTF writes the skinned bind mesh and the whole clip as one
// animation sampled once per frame.
func (inst *Instance) ExportGLTF(doc *gltf.Document, name string) error {
	tfme, err := inst.Model.ExportGLTF(doc, name, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to export mesh")
	}
	if tfme.Skeleton == nil {
		return errors.Errorf("Model has no skeleton")
	}

	clip := inst.Clip
	if len(clip.Frames) == 0 || clip.FrameRate <= 0 {
		return nil
	}

	// separate builder keeps the instance frame untouched
	b := pose.NewBuilder(clip)

	times := make([]float32, len(clip.Frames))
	translations := make([][][3]float32, len(clip.Channels))
	rotations := make([][][4]float32, len(clip.Channels))
	for iChannel := range clip.Channels {
		translations[iChannel] = make([][3]float32, len(clip.Frames))
		rotations[iChannel] = make([][4]float32, len(clip.Frames))
	}

	for iFrame := range clip.Frames {
		times[iFrame] = float32(iFrame) / float32(clip.FrameRate)
		if err := b.BuildLocal(iFrame); err != nil {
			return errors.Wrapf(err, "Failed to build frame %d", iFrame)
		}
		for iChannel, p := range b.Poses {
			translations[iChannel][iFrame] = p.Origin
			rotations[iChannel][iFrame] = p.Orientation.V.Vec4(p.Orientation.W)
		}
	}

	input := modeler.WriteAccessor(doc, gltf.TargetNone, times)
	doc.Accessors[input].Min = []float32{times[0]}
	doc.Accessors[input].Max = []float32{times[len(times)-1]}

	animation := &gltf.Animation{Name: name}
	addChannel := func(node uint32, path gltf.TRSProperty, output uint32) {
		animation.Channels = append(animation.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(animation.Samplers))),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(node),
				Path: path,
			},
		})
		animation.Samplers = append(animation.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(input),
			Interpolation: gltf.InterpolationLinear,
			Output:        gltf.Index(output),
		})
	}

	for iChannel := range clip.Channels {
		node := tfme.Skeleton.JointNodes[inst.bindIndex[iChannel]]
		addChannel(node, gltf.TRSTranslation, modeler.WriteAccessor(doc, gltf.TargetNone, translations[iChannel]))
		addChannel(node, gltf.TRSRotation, modeler.WriteAccessor(doc, gltf.TargetNone, rotations[iChannel]))
	}

	doc.Animations = append(doc.Animations, animation)
	return nil
}
