package volume

import (
	"math"
	"testing"

	"github.com/achilleasa/nimbus/types"
)

func TestTransmittanceBuildPathsMatch(t *testing.T) {
	base := makeTestGrid(32, func(x, y, z int) float32 {
		dx, dy, dz := float32(x)-16, float32(y)-16, float32(z)-16
		if dx*dx+dy*dy+dz*dz < 100 {
			return 0.5 + 0.01*float32(x)
		}
		return 0
	})
	params := TransmittanceParams{
		LightDir: types.Vec3{1, 2, 0.5}.Normalize(),
		Alpha:    16,
	}

	serial := BuildTransmittance(base, params, false)
	parallel := BuildTransmittance(base, params, true)

	if serial.Levels() != TransmittanceMipLevels {
		t.Fatalf("expected %d levels; got %d", TransmittanceMipLevels, serial.Levels())
	}
	expRes := []int{16, 8, 4, 2, 1, 1, 1, 1}
	for mip := 0; mip < serial.Levels(); mip++ {
		a, b := serial.Level(mip), parallel.Level(mip)
		if a.Res != expRes[mip] {
			t.Fatalf("expected level %d resolution %d; got %d", mip, expRes[mip], a.Res)
		}
		for i := range a.Data {
			if a.Data[i] != b.Data[i] {
				t.Fatalf("level %d voxel %d: serial %f != parallel %f", mip, i, a.Data[i], b.Data[i])
			}
		}
	}
	if !serial.Params().Matches(params) {
		t.Fatal("expected field to record its build params")
	}
}

func TestTransmittanceVacuumAndShadow(t *testing.T) {
	empty := NewGrid(16)
	params := TransmittanceParams{LightDir: types.Vec3{0, 1, 0}, Alpha: 10}
	field := BuildTransmittance(empty, params, true)
	for mip := 0; mip < field.Levels(); mip++ {
		for _, v := range field.Level(mip).Data {
			if v != 1 {
				t.Fatalf("expected unit transmittance in vacuum at level %d; got %f", mip, v)
			}
		}
	}

	// A dense slab in the upper half shadows the lower half
	slab := makeTestGrid(16, func(x, y, z int) float32 {
		if y >= 12 {
			return 1
		}
		return 0
	})
	field = BuildTransmittance(slab, params, false)
	below := field.AtPosition(0, types.Vec3{0, -0.3, 0})
	above := field.AtPosition(0, types.Vec3{0, 0.49, 0})
	if below >= 0.5 {
		t.Fatalf("expected voxels below the slab to be shadowed; got %f", below)
	}
	if above <= below {
		t.Fatalf("expected less attenuation near the lit side (%f) than below the slab (%f)", above, below)
	}

	// Analytic optical depth through the slab: 4 voxels of 1/16 at density 1
	exp := math.Exp(-10 * 0.25)
	if math.Abs(float64(below)-exp) > 0.05 {
		t.Fatalf("expected transmittance below slab ~%f; got %f", exp, below)
	}
}

func TestTransmittanceLerp(t *testing.T) {
	base := makeTestGrid(16, func(x, y, z int) float32 { return float32(x) * 0.1 })
	field := BuildTransmittance(base, TransmittanceParams{LightDir: types.Vec3{1, 0, 0}, Alpha: 1}, true)

	pos := types.Vec3{0.1, 0, 0}
	lo := field.AtPosition(2, pos)
	hi := field.AtPosition(3, pos)
	got := field.AtPositionLerp(2.5, pos)
	if math.Abs(float64(got-(lo+hi)*0.5)) > 1e-6 {
		t.Fatalf("expected midpoint blend %f; got %f", (lo+hi)*0.5, got)
	}
}
