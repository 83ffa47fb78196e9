package systems

import (
	"encoding/binary"
	"fmt"
	m "math"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

/**
 * @brief Camera owns the single shared view-projection buffer every drawing
 * system binds read-only. The buffer is only re-uploaded when the transform
 * actually changes, which is announced on the camera-changed topic.
 */
type Camera struct {
	backend renderer.Backend
	bus     *core.ParameterBus

	position math.Vec3
	target   math.Vec3
	fovDeg   float32
	aspect   float32
	nearClip float32
	farClip  float32

	viewProjection renderer.Buffer
}

func NewCamera(backend renderer.Backend, bus *core.ParameterBus, aspect float32) (*Camera, error) {
	buffer, err := backend.BufferCreate(renderer.BufferKindUniform, renderer.Mat4ByteSize)
	if err != nil {
		return nil, fmt.Errorf("func NewCamera: view-projection buffer: %w", err)
	}
	c := &Camera{
		backend:        backend,
		bus:            bus,
		position:       math.NewVec3(0, 0, 40),
		target:         math.NewVec3Zero(),
		fovDeg:         45,
		aspect:         aspect,
		nearClip:       0.1,
		farClip:        1000,
		viewProjection: buffer,
	}
	if err := c.upload(); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return c, nil
}

// ViewProjection returns the shared read-only buffer handle.
func (c *Camera) ViewProjection() renderer.Buffer {
	return c.viewProjection
}

// Move repositions the camera and republishes the transform.
func (c *Camera) Move(position, target math.Vec3) error {
	c.position = position
	c.target = target
	return c.changed()
}

// Zoom moves the camera along the view axis, clamped so it can never cross
// the target.
func (c *Camera) Zoom(delta float32) error {
	dir := c.target.Sub(c.position).Normalize()
	distance := c.position.Distance(c.target)
	distance = math.Clamp(distance-delta, 2.0, 500.0)
	c.position = c.target.Sub(dir.MulScalar(distance))
	return c.changed()
}

func (c *Camera) changed() error {
	if err := c.upload(); err != nil {
		return err
	}
	c.bus.Publish(core.TopicCameraChanged, core.ParamValue{})
	return nil
}

func (c *Camera) upload() error {
	projection := math.NewMat4Perspective(math.DegToRad(c.fovDeg), c.aspect, c.nearClip, c.farClip)
	view := math.NewMat4LookAt(c.position, c.target, math.NewVec3(0, 1, 0))
	vp := projection.Mul(view)

	data := make([]byte, renderer.Mat4ByteSize)
	for i, f := range vp.Data {
		binary.LittleEndian.PutUint32(data[i*4:], m.Float32bits(f))
	}
	return c.backend.BufferLoadRange(c.viewProjection, 0, data)
}

func (c *Camera) Destroy() {
	if c.viewProjection != nil {
		c.viewProjection.Destroy()
		c.viewProjection = nil
	}
}
