package scene

import (
	"fmt"
	"math"

	"github.com/achilleasa/nimbus/types"
)

// A pinhole camera. Up and Right span the image plane at unit distance
// along the view direction; their lengths encode the field of view and
// aspect ratio. The view direction is normalize(Up x Right).
type Camera struct {
	Origin types.Vec3
	Up     types.Vec3
	Right  types.Vec3
}

// Create a camera orbiting the volume center. Yaw rotates around the Y axis
// and pitch raises the camera above the XZ plane (both in radians). The
// vertical field of view is given in degrees.
func NewOrbitCamera(yaw, pitch, distance, fovDeg, aspect float32) Camera {
	orient := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, yaw).Mul(
		types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, -pitch),
	).Normalize()

	halfH := float32(math.Tan(float64(fovDeg) * math.Pi / 360))
	return Camera{
		Origin: orient.Rotate(types.Vec3{0, 0, distance}),
		Up:     orient.Rotate(types.Vec3{0, 1, 0}).Mul(halfH),
		Right:  orient.Rotate(types.Vec3{1, 0, 0}).Mul(halfH * aspect),
	}
}

// Get the normalized view direction.
func (c Camera) Forward() types.Vec3 {
	return c.Up.Cross(c.Right).Normalize()
}

// Generate the primary ray through pixel (x, y) of a width x height image.
// The jitter offsets the sample inside the pixel and must be in [0, 1).
// A degenerate camera yields a zero direction.
func (c Camera) Ray(x, y, width, height int, jitter types.Vec2) (types.Vec3, types.Vec3) {
	u := 2*(float32(x)+jitter[0])/float32(width) - 1
	v := 1 - 2*(float32(y)+jitter[1])/float32(height)

	fwd := c.Forward()
	if fwd.IsZero() {
		return c.Origin, types.Vec3{}
	}
	dir := fwd.Add(c.Right.Mul(u)).Add(c.Up.Mul(v)).Normalize()
	return c.Origin, dir
}

func (c Camera) String() string {
	return fmt.Sprintf(
		"Camera origin: (%3.3f, %3.3f, %3.3f), forward: (%3.3f, %3.3f, %3.3f)",
		c.Origin[0], c.Origin[1], c.Origin[2],
		c.Forward()[0], c.Forward()[1], c.Forward()[2],
	)
}
