// Package pose turns decoded clip frames into joint matrices.
//
// Every frame goes through three stages, each with its own field:
// Local (parent relative), Model (propagated down the hierarchy) and
// Skin (model space composed with the inverse bind pose).
package pose

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/md5_browser/pack/md5"
	"github.com/mogaika/md5_browser/pack/md5/anim"
	"github.com/mogaika/md5_browser/pack/md5/mesh"
	"github.com/mogaika/md5_browser/utils"
)

type Stage int

const (
	StageEmpty Stage = iota
	StageLocal
	StageModel
	StageSkin
)

var ErrStage = errors.New("pose stage order violated")

type Pose struct {
	Parent      int
	Origin      mgl32.Vec3
	Orientation mgl32.Quat

	Local mgl32.Mat4
	Model mgl32.Mat4
	Skin  mgl32.Mat4
}

// Builder owns the per joint scratch of one playback instance
type Builder struct {
	clip  *anim.Clip
	Poses []Pose
	Frame int
	Stage Stage
}

func NewBuilder(clip *anim.Clip) *Builder {
	b := &Builder{
		clip:  clip,
		Poses: make([]Pose, len(clip.Channels)),
		Frame: -1,
	}
	for i := range b.Poses {
		b.Poses[i].Parent = clip.Channels[i].Parent
	}
	return b
}

func (b *Builder) Clip() *anim.Clip {
	return b.clip
}

// BuildLocal decodes frame and fills Local for every joint
func (b *Builder) BuildLocal(frame int) error {
	b.Stage = StageEmpty
	if err := b.clip.CheckFrame(frame); err != nil {
		return err
	}
	for i := range b.Poses {
		origin, orientation, err := b.clip.Decode(frame, i)
		if err != nil {
			return err
		}
		p := &b.Poses[i]
		p.Origin = origin
		// Normalize returns identity for zero length
		p.Orientation = utils.QuatFromXYZ(orientation).Normalize()
		p.Local = utils.MatrixFrom(p.Orientation, p.Origin)
	}
	b.Frame = frame
	b.Stage = StageLocal
	return nil
}

// PropagateToModel walks joints in declaration order, which the clip
// loader guarantees to be parent first.
func (b *Builder) PropagateToModel() error {
	if b.Stage < StageLocal {
		return errors.Wrapf(ErrStage, "model transforms need local transforms")
	}
	for i := range b.Poses {
		p := &b.Poses[i]
		if p.Parent < 0 {
			p.Model = p.Local
		} else {
			p.Model = b.Poses[p.Parent].Model.Mul4(p.Local)
		}
	}
	b.Stage = StageModel
	return nil
}

// Build runs the local and model stages for frame
func (b *Builder) Build(frame int) error {
	if err := b.BuildLocal(frame); err != nil {
		return err
	}
	return b.PropagateToModel()
}

// ComposeSkin sets Skin = Model * inverse bind of the matching bind joint.
// bindIndex maps every pose to an index into joints.
func (b *Builder) ComposeSkin(joints []mesh.Joint, bindIndex []int) error {
	if b.Stage < StageModel {
		return errors.Wrapf(ErrStage, "skin transforms need model transforms")
	}
	if len(bindIndex) != len(b.Poses) {
		return errors.Errorf("Got %d bind indexes for %d poses", len(bindIndex), len(b.Poses))
	}
	for i := range b.Poses {
		if err := md5.CheckIndex("bind joint", bindIndex[i], len(joints)); err != nil {
			return err
		}
		p := &b.Poses[i]
		p.Skin = p.Model.Mul4(joints[bindIndex[i]].InverseBindPose)
	}
	b.Stage = StageSkin
	return nil
}
