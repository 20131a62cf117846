package integrator

import (
	"context"
	"errors"
	"math"
	"testing"

	volfile "github.com/achilleasa/nimbus/asset/volume"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

// Create a 64^3 scene holding a sphere with radius 20 voxels.
func sphereScene(t *testing.T, density float32) *scene.Scene {
	t.Helper()
	sc, err := scene.NewFromData(64, volfile.Sphere(64, 20, density).Data)
	if err != nil {
		t.Fatal(err)
	}
	if err = sc.Update(); err != nil {
		t.Fatal(err)
	}
	return sc
}

func snapshot(t *testing.T, sc *scene.Scene) *scene.Snapshot {
	t.Helper()
	snap, err := sc.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestIntersectUnitBox(t *testing.T) {
	type spec struct {
		o, d             types.Vec3
		expNear, expFar  float32
		expAxis          int
		expHit           bool
	}
	specs := []spec{
		{types.Vec3{-1, 0.5, 0.5}, types.Vec3{1, 0, 0}, 1, 2, 0, true},
		{types.Vec3{0.5, 0.5, 0.5}, types.Vec3{0, 0, -1}, 0, 0.5, -1, true},
		{types.Vec3{0.5, 2, 0.5}, types.Vec3{0, -1, 0}, 1, 2, 1, true},
		{types.Vec3{-1, 2, 0.5}, types.Vec3{1, 0, 0}, 0, 0, -1, false},
		{types.Vec3{2, 0.5, 0.5}, types.Vec3{1, 0, 0}, 0, 0, -1, false},
	}

	for index, s := range specs {
		tNear, tFar, axis, hit := intersectUnitBox(s.o, s.d)
		if hit != s.expHit {
			t.Fatalf("[spec %d] expected hit %t; got %t", index, s.expHit, hit)
		}
		if !hit {
			continue
		}
		if tNear != s.expNear || tFar != s.expFar || axis != s.expAxis {
			t.Fatalf("[spec %d] expected (%f, %f, %d); got (%f, %f, %d)", index, s.expNear, s.expFar, s.expAxis, tNear, tFar, axis)
		}
	}
}

func TestGetTr(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	snap := snapshot(t, sc)

	// The ray passes through 40 voxels (0.625 world units) of density 0.01.
	expSphere := float32(math.Exp(-64 * 0.01 * 40.0 / 64.0))

	type spec struct {
		ori, dir types.Vec3
		alpha    float32
		exp      float32
		tol      float32
	}
	specs := []spec{
		// Vacuum: ray misses the volume or alpha is zero.
		{types.Vec3{-1, 2, 0}, types.Vec3{1, 0, 0}, 64, 1, 0},
		{types.Vec3{-1, 0, 0}, types.Vec3{1, 0, 0}, 0, 1, 0},
		// Corner region of the volume is empty.
		{types.Vec3{-1, 0.45, 0.45}, types.Vec3{1, 0, 0}, 64, 1, 0},
		// Through the center of the sphere; direction need not be normalized.
		{types.Vec3{-1, 0, 0}, types.Vec3{1, 0, 0}, 64, expSphere, 0.03},
		{types.Vec3{0, 0, 1}, types.Vec3{0, 0, -3}, 64, expSphere, 0.03},
		// Opaque.
		{types.Vec3{-1, 0, 0}, types.Vec3{1, 0, 0}, 1e5, 0, 1e-3},
		// Degenerate direction.
		{types.Vec3{-1, 0, 0}, types.Vec3{}, 64, 0, 0},
		{types.Vec3{-1, 0, 0}, types.Vec3{float32(math.NaN()), 0, 0}, 64, 0, 0},
		{types.Vec3{-1, 0, 0}, types.Vec3{float32(math.Inf(1)), 0, 0}, 64, 0, 0},
	}

	for index, s := range specs {
		tr := GetTr(snap, s.ori, s.dir, s.alpha, 4096, 42)
		if tr[0] != tr[1] || tr[1] != tr[2] {
			t.Fatalf("[spec %d] expected grey transmittance; got %v", index, tr)
		}
		if math.Abs(float64(tr[0]-s.exp)) > float64(s.tol) {
			t.Fatalf("[spec %d] expected transmittance %f (+/- %f); got %f", index, s.exp, s.tol, tr[0])
		}
	}
}

func TestGetTrTrScale(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()

	base := GetTr(snapshot(t, sc), types.Vec3{-1, 0, 0}, types.Vec3{1, 0, 0}, 64, 4096, 1)
	sc.SetTrScale(2)
	scaled := GetTr(snapshot(t, sc), types.Vec3{-1, 0, 0}, types.Vec3{1, 0, 0}, 64, 4096, 1)

	// Doubling the extinction squares the transmittance.
	if math.Abs(float64(scaled[0]-base[0]*base[0])) > 0.03 {
		t.Fatalf("expected %f; got %f", base[0]*base[0], scaled[0])
	}
}

func TestEstimatorValidation(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	snap := snapshot(t, sc)

	type spec struct {
		mutate func(*Params)
		expErr error
	}
	specs := []spec{
		{func(p *Params) {}, nil},
		{func(p *Params) { p.Mode = 7 }, ErrUnknownMode},
		{func(p *Params) { p.Alpha = -1 }, ErrInvalidParams},
		{func(p *Params) { p.Alpha = float32(math.NaN()) }, ErrInvalidParams},
		{func(p *Params) { p.G = 1 }, ErrInvalidParams},
		{func(p *Params) { p.MultiScatter = 0 }, ErrInvalidParams},
		{func(p *Params) { p.LightDir = types.Vec3{} }, ErrInvalidParams},
		{func(p *Params) { p.LightColor = types.Vec3{float32(math.Inf(1)), 0, 0} }, ErrInvalidParams},
	}
	for index, s := range specs {
		params := DefaultParams()
		s.mutate(&params)
		_, err := New(snap, params)
		if !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}

	if _, err := New(nil, DefaultParams()); !errors.Is(err, scene.ErrNotReady) {
		t.Fatalf("expected ErrNotReady; got %v", err)
	}
}

func TestApproxModesRequireTransmittance(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()

	params := DefaultParams()
	params.Mode = RPNN
	params.Alpha = 64
	if _, err := New(snapshot(t, sc), params); !errors.Is(err, scene.ErrNotReady) {
		t.Fatalf("expected ErrNotReady; got %v", err)
	}

	if _, err := sc.UpdateTransmittance(types.Vec3{1, 0, 0}, 64, false); err != nil {
		t.Fatal(err)
	}
	if _, err := New(snapshot(t, sc), params); !errors.Is(err, scene.ErrStaleTransmittance) {
		t.Fatalf("expected ErrStaleTransmittance; got %v", err)
	}

	params.LightDir = types.Vec3{2, 0, 0}
	for _, mode := range []Mode{RPNN, MRPNN} {
		params.Mode = mode
		if _, err := New(snapshot(t, sc), params); err != nil {
			t.Fatalf("[%s] unexpected error %v", mode, err)
		}
	}
}

func TestRadianceWithoutMedium(t *testing.T) {
	sc, err := scene.New(8)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Close()
	sc.SetEnvironment(volume.UniformEnvironment(types.Vec3{0.25, 0.5, 1}))
	sc.SetEnvExposure(2)
	_ = sc.Update()

	params := DefaultParams()
	params.Alpha = 64
	if _, err = sc.UpdateTransmittance(params.LightDir, params.Alpha, true); err != nil {
		t.Fatal(err)
	}
	snap := snapshot(t, sc)

	exp := types.Vec3{0.5, 1, 2}
	rays := [][2]types.Vec3{
		{{0, 0, 2}, {0, 0, -1}},   // through the empty volume
		{{0, 2, 2}, {0, 0, -1}},   // misses the volume
		{{0, 0, 0}, {0.3, 1, -2}}, // starts inside
	}
	for _, mode := range []Mode{PT, RPNN, MRPNN} {
		params.Mode = mode
		est, err := New(snap, params)
		if err != nil {
			t.Fatal(err)
		}
		s := NewSampler(1, 1)
		for index, ray := range rays {
			if got := est.Radiance(ray[0], ray[1], s); got != exp {
				t.Fatalf("[%s spec %d] expected background %v; got %v", mode, index, exp, got)
			}
		}
		if got := est.Radiance(types.Vec3{}, types.Vec3{}, s); !got.IsZero() {
			t.Fatalf("[%s] expected zero radiance for a degenerate ray; got %v", mode, got)
		}
	}
}

func TestFrontLitBrighterThanBackLit(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	sc.UpdatePhaseLUT(0)

	ori := types.Vec3{0, 0, 2}
	dir := types.Vec3{0, 0, -1}
	for _, mode := range []Mode{PT, RPNN, MRPNN} {
		var lum [2]float32
		for i, light := range []types.Vec3{{0, 0, 1}, {0, 0, -1}} {
			params := Params{
				Mode:         mode,
				LightDir:     light,
				LightColor:   types.Vec3{1, 1, 1},
				Alpha:        640,
				G:            0,
				MultiScatter: 1,
			}
			if _, err := sc.UpdateTransmittance(light, params.Alpha, false); err != nil {
				t.Fatal(err)
			}
			est, err := New(snapshot(t, sc), params)
			if err != nil {
				t.Fatal(err)
			}
			out, err := est.Radiances(context.Background(), []types.Vec3{ori}, []types.Vec3{dir}, 2048, 7)
			if err != nil {
				t.Fatal(err)
			}
			lum[i] = out[0].Luminance()
		}

		if !(lum[0] > 1.5*lum[1]) || lum[1] <= 0 {
			t.Fatalf("[%s] expected front-lit radiance (%f) to clearly exceed back-lit radiance (%f)", mode, lum[0], lum[1])
		}
	}
}

func TestRadiancesDeterministic(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()

	params := DefaultParams()
	params.Alpha = 128
	params.MultiScatter = 16
	est, err := New(snapshot(t, sc), params)
	if err != nil {
		t.Fatal(err)
	}

	ori := make([]types.Vec3, 200)
	dir := make([]types.Vec3, 200)
	for i := range ori {
		ori[i] = types.Vec3{float32(i)/200 - 0.5, 0, 2}
		dir[i] = types.Vec3{0, 0, -1}
	}

	a, err := est.Radiances(context.Background(), ori, dir, 4, 99)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := est.Radiances(context.Background(), ori, dir, 4, 99)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ray %d: expected identical estimates; got %v and %v", i, a[i], b[i])
		}
	}

	if _, err = est.Radiances(context.Background(), ori, dir[:5], 1, 0); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch; got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = est.Radiances(ctx, ori, dir, 1, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
}

func TestSamples(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	snap := snapshot(t, sc)

	batch := SampleBatch{
		Alpha:    []float32{64, 64, 64},
		Ori:      []types.Vec3{{0, 0, 2}, {0, 0, 2}, {0, 0, 2}},
		Dir:      []types.Vec3{{0, 0, -1}, {}, {0, 0, -1}},
		LightDir: []types.Vec3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		G:        []float32{0.5, 0.5, 0.5},
		Scatter:  []float32{1, 1, 0},
	}
	out, err := Samples(context.Background(), snap, batch, types.Vec3{1, 1, 1}, 4, 64, 3)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Luminance() <= 0 {
		t.Fatalf("expected scattered radiance; got %v", out[0])
	}
	if !out[1].IsZero() {
		t.Fatalf("expected zero radiance for a degenerate ray; got %v", out[1])
	}
	if !out[2].IsZero() {
		t.Fatalf("expected zero radiance without scattering and environment; got %v", out[2])
	}

	batch.G = batch.G[:2]
	if _, err = Samples(context.Background(), snap, batch, types.Vec3{1, 1, 1}, 4, 1, 3); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch; got %v", err)
	}
}

func TestTrs(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	snap := snapshot(t, sc)

	ori := []types.Vec3{{0, 2, 0}, {0, 0, 0}}
	dir := []types.Vec3{{0, -1, 0}, {0, -1, 0}}
	light := types.Vec3{0, 1, 0}
	out, err := Trs(context.Background(), snap, 64, ori, dir, light, types.Vec3{2, 2, 2}, 0, 1024, 5)
	if err != nil {
		t.Fatal(err)
	}

	// Outside the volume only the phase function remains.
	exp := 2 * volume.HenyeyGreenstein(-1, 0)
	if math.Abs(float64(out[0][0]-exp)) > 1e-6 {
		t.Fatalf("expected %f; got %f", exp, out[0][0])
	}
	// From the center, light crosses 20 voxels.
	expCenter := exp * float32(math.Exp(-64*0.01*20.0/64.0))
	if math.Abs(float64(out[1][0]-expCenter)) > 0.05*float64(exp) {
		t.Fatalf("expected %f; got %f", expCenter, out[1][0])
	}

	if _, err = Trs(context.Background(), snap, 64, ori, dir[:1], light, types.Vec3{1, 1, 1}, 0, 1, 0); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch; got %v", err)
	}
}

func TestBatchNonFiniteRays(t *testing.T) {
	sc := sphereScene(t, 0.01)
	defer sc.Close()
	sc.UpdatePhaseLUT(0.5)
	snap := snapshot(t, sc)

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	// Every ray but the first one carries a non-finite component.
	batch := SampleBatch{
		Alpha:    []float32{64, 64, 64, nan, 64},
		Ori:      []types.Vec3{{0, 0, 2}, {0, 0, 2}, {0, 0, 2}, {0, 0, 2}, {inf, 0, 2}},
		Dir:      []types.Vec3{{0, 0, -1}, {nan, 1, 0}, {0, 0, -1}, {0, 0, -1}, {0, 0, -1}},
		LightDir: []types.Vec3{{0, 1, 0}, {0, 1, 0}, {0, nan, 0}, {0, 1, 0}, {0, 1, 0}},
		G:        []float32{0.5, 0.5, 0.5, 0.5, 0.5},
		Scatter:  []float32{1, 1, 1, 1, 1},
	}
	out, err := Samples(context.Background(), snap, batch, types.Vec3{1, 1, 1}, 4, 64, 3)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Luminance() <= 0 {
		t.Fatalf("expected scattered radiance for the finite ray; got %v", out[0])
	}
	for index := 1; index < len(out); index++ {
		if !out[index].IsZero() {
			t.Fatalf("[spec %d] expected zero radiance; got %v", index, out[index])
		}
	}

	ori := []types.Vec3{{0, 2, 0}, {0, 2, 0}, {0, 2, 0}, {nan, 0, 0}}
	dir := []types.Vec3{{0, -1, 0}, {nan, 1, 0}, {0, inf, 0}, {0, -1, 0}}
	trs, err := Trs(context.Background(), snap, 64, ori, dir, types.Vec3{0, 1, 0}, types.Vec3{1, 1, 1}, 0.5, 16, 5)
	if err != nil {
		t.Fatal(err)
	}
	if trs[0].Luminance() <= 0 {
		t.Fatalf("expected light for the finite ray; got %v", trs[0])
	}
	for index := 1; index < len(trs); index++ {
		if !trs[index].IsZero() {
			t.Fatalf("[spec %d] expected zero light; got %v", index, trs[index])
		}
	}

	if _, err = Trs(context.Background(), snap, 64, ori, dir, types.Vec3{nan, 1, 0}, types.Vec3{1, 1, 1}, 0.5, 1, 5); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams; got %v", err)
	}
}

func TestSampleHG(t *testing.T) {
	type spec struct {
		g float32
		d types.Vec3
	}
	specs := []spec{
		{0, types.Vec3{0, 0, 1}},
		{0.8, types.Vec3{1, 0, 0}},
		{-0.5, types.Vec3{0, 0.6, 0.8}},
	}

	for index, s := range specs {
		sampler := NewSampler(11, uint64(index))
		var meanCos float64
		const n = 20000
		for i := 0; i < n; i++ {
			out := sampleHG(s.d, s.g, sampler.Vec2())
			if math.Abs(float64(out.Len())-1) > 1e-4 {
				t.Fatalf("[spec %d] expected unit direction; got %v", index, out)
			}
			meanCos += float64(out.Dot(s.d))
		}
		meanCos /= n
		// The mean cosine of the HG distribution is g.
		if math.Abs(meanCos-float64(s.g)) > 0.02 {
			t.Fatalf("[spec %d] expected mean cosine %f; got %f", index, s.g, meanCos)
		}
	}
}

func TestParseMode(t *testing.T) {
	type spec struct {
		in     string
		exp    Mode
		expErr error
	}
	specs := []spec{
		{"pt", PT, nil},
		{"RPNN", RPNN, nil},
		{"mrpnn", MRPNN, nil},
		{"nn", PT, ErrUnknownMode},
	}
	for index, s := range specs {
		got, err := ParseMode(s.in)
		if !errors.Is(err, s.expErr) || got != s.exp {
			t.Fatalf("[spec %d] expected (%s, %v); got (%s, %v)", index, s.exp, s.expErr, got, err)
		}
	}
}
