// Package skin deforms bind pose meshes with an animation clip.
//
// An Instance owns every buffer one playback needs, so many instances can
// share a parsed Model and Clip and run on separate goroutines.
package skin

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5/anim"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
	"github.com/mogaika/md5_browser/pack/md5/pose"
	"github.com/mogaika/md5_browser/utils"
)

var ErrJointMismatch = errors.New("clip hierarchy does not match bind skeleton")

type Instance struct {
	Name  string
	Model *mesh.Model
	Clip  *anim.Clip

	builder *pose.Builder
	// clip channel -> bind joint
	bindIndex []int
	// per bind joint, identity for joints the clip does not drive
	skinMatrices []mgl32.Mat4

	// per mesh, per vertex
	Animated [][]mgl32.Vec3
	Frame    int
}

// NewInstance pairs clip channels with bind joints by name
func NewInstance(name string, model *mesh.Model, clip *anim.Clip) (*Instance, error) {
	inst := &Instance{
		Name:         name,
		Model:        model,
		Clip:         clip,
		builder:      pose.NewBuilder(clip),
		bindIndex:    make([]int, len(clip.Channels)),
		skinMatrices: make([]mgl32.Mat4, len(model.Joints)),
		Animated:     make([][]mgl32.Vec3, len(model.Meshes)),
		Frame:        -1,
	}

	for i := range clip.Channels {
		iJoint := model.JointIndex(clip.Channels[i].Name)
		if iJoint < 0 {
			return nil, errors.Wrapf(ErrJointMismatch, "channel %q", clip.Channels[i].Name)
		}
		inst.bindIndex[i] = iJoint
	}
	for i, ch := range clip.Channels {
		wantParent := -1
		if ch.Parent >= 0 {
			wantParent = inst.bindIndex[ch.Parent]
		}
		if got := model.Joints[inst.bindIndex[i]].Parent; got != wantParent {
			return nil, errors.Wrapf(ErrJointMismatch, "channel %q parent is joint %d in clip and %d in mesh",
				ch.Name, wantParent, got)
		}
	}
	for i := range inst.skinMatrices {
		inst.skinMatrices[i] = mgl32.Ident4()
	}
	for iMesh := range model.Meshes {
		inst.Animated[iMesh] = model.Meshes[iMesh].BindPositions()
	}

	return inst, nil
}

func (inst *Instance) Poses() []pose.Pose {
	return inst.builder.Poses
}

// SkinMatrix returns the skinning matrix of bind joint iJoint for the current frame
func (inst *Instance) SkinMatrix(iJoint int) mgl32.Mat4 {
	return inst.skinMatrices[iJoint]
}

// EvaluateFrame poses the skeleton at frame and deforms every vertex.
// The bind aggregate position is carried by each weight's skinning
// matrix and blended with the weight bias.
func (inst *Instance) EvaluateFrame(frame int) error {
	b := inst.builder
	if err := b.Build(frame); err != nil {
		return errors.Wrapf(err, "Failed to build pose")
	}
	if err := b.ComposeSkin(inst.Model.Joints, inst.bindIndex); err != nil {
		return errors.Wrapf(err, "Failed to compose skin")
	}
	for i := range b.Poses {
		inst.skinMatrices[inst.bindIndex[i]] = b.Poses[i].Skin
	}

	for iMesh := range inst.Model.Meshes {
		m := &inst.Model.Meshes[iMesh]
		animated := inst.Animated[iMesh]
		for iVertex := range m.Vertices {
			bindPos := m.Vertices[iVertex].BindPosition
			var pos mgl32.Vec3
			for _, w := range m.VertexWeights(iVertex) {
				p := utils.TransformPoint(inst.skinMatrices[w.Joint], bindPos)
				pos = pos.Add(p.Mul(w.Bias))
			}
			animated[iVertex] = pos
		}
	}

	inst.Frame = frame
	return nil
}

// EvaluateTime evaluates the frame shown at playback time seconds
func (inst *Instance) EvaluateTime(seconds float64, loop bool) error {
	return inst.EvaluateFrame(inst.Clip.FrameAt(seconds, loop))
}
