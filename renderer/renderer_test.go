package renderer

import (
	"context"
	"errors"
	"math"
	"testing"

	volfile "github.com/achilleasa/nimbus/asset/volume"
	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/tracer"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

var background = types.Vec3{0.25, 0.5, 1}

func emptyScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc, err := scene.New(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sc.Close)
	sc.SetEnvironment(volume.UniformEnvironment(background))
	if err = sc.Update(); err != nil {
		t.Fatal(err)
	}
	return sc
}

func sphereScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc, err := scene.NewFromData(64, volfile.Sphere(64, 20, 0.01).Data)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sc.Close)
	if err = sc.Update(); err != nil {
		t.Fatal(err)
	}
	return sc
}

func testOptions(frameW, frameH uint32) Options {
	opts := DefaultOptions(frameW, frameH)
	opts.NumTracers = 2
	opts.TracerWorkers = 2
	opts.Alpha = 64
	opts.MultiScatter = 4
	return opts
}

func TestNewDefaultValidation(t *testing.T) {
	sc := emptyScene(t)

	if _, err := NewDefault(nil, nil, nil, testOptions(4, 4)); !errors.Is(err, ErrSceneNotDefined) {
		t.Fatalf("expected ErrSceneNotDefined; got %v", err)
	}

	type spec struct {
		mutate func(*Options)
		expErr error
	}
	specs := []spec{
		{func(o *Options) { o.FrameW = 0 }, nil},
		{func(o *Options) { o.SamplesPerPixel = 0 }, nil},
		{func(o *Options) { o.G = 2 }, integrator.ErrInvalidParams},
		{func(o *Options) { o.Mode = 9 }, integrator.ErrUnknownMode},
	}
	for index, s := range specs {
		opts := testOptions(4, 4)
		s.mutate(&opts)
		_, err := NewDefault(sc, nil, nil, opts)
		if err == nil {
			t.Fatalf("[spec %d] expected an error", index)
		}
		if s.expErr != nil && !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}

	r, err := NewDefault(sc, nil, nil, testOptions(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for index, frame := range []*tracer.Frame{nil, tracer.NewFrame(4, 3), {Width: 4, Height: 4}} {
		if err = r.Render(context.Background(), frame); !errors.Is(err, ErrInvalidFrame) {
			t.Fatalf("[frame %d] expected ErrInvalidFrame; got %v", index, err)
		}
	}
}

func TestRenderAccumulates(t *testing.T) {
	sc := emptyScene(t)
	sc.SetCheckerboard(false)
	opts := testOptions(6, 5)
	opts.LastPredict = true

	r, err := NewDefault(sc, tracer.PerfectScheduler(), nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	frame := tracer.NewFrame(6, 5)
	for i := 0; i < 3; i++ {
		if err = r.Render(context.Background(), frame); err != nil {
			t.Fatal(err)
		}
	}

	expPacked := opts.ToneType.Pack(background, 1)
	for idx := range frame.Radiance {
		if got := frame.Histogram[idx].TotalSampleNum; got != 3 {
			t.Fatalf("pixel %d: expected 3 accumulated samples; got %f", idx, got)
		}
		if frame.Radiance[idx] != background {
			t.Fatalf("pixel %d: expected radiance %v; got %v", idx, background, frame.Radiance[idx])
		}
		if frame.Aux[idx] != expPacked {
			t.Fatalf("pixel %d: expected packed color %08x; got %08x", idx, expPacked, frame.Aux[idx])
		}
	}

	stats := r.Stats()
	if stats.FrameCount != 3 || len(stats.Tracers) != 2 {
		t.Fatalf("expected stats for 3 frames and 2 tracers; got %+v", stats)
	}
	var rows uint32
	for _, trStat := range stats.Tracers {
		rows += trStat.BlockH
	}
	if rows != 5 {
		t.Fatalf("expected tracer blocks to cover 5 rows; got %d", rows)
	}

	// Reset restarts accumulation.
	r.Reset()
	if err = r.Render(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	if got := frame.Histogram[0].TotalSampleNum; got != 1 {
		t.Fatalf("expected accumulation to restart after reset; got %f samples", got)
	}

	// So does a scene change.
	sc.SetExposure(2)
	if err = r.Render(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	if got := frame.Histogram[0].TotalSampleNum; got != 1 {
		t.Fatalf("expected accumulation to restart after a scene change; got %f samples", got)
	}
	if exp := opts.ToneType.Pack(background, 2); frame.Aux[0] != exp {
		t.Fatalf("expected packed color %08x with exposure 2; got %08x", exp, frame.Aux[0])
	}
}

func TestRenderCheckerboard(t *testing.T) {
	sc := emptyScene(t)
	sc.SetCheckerboard(true)
	opts := testOptions(4, 4)

	r, err := NewDefault(sc, nil, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	frame := tracer.NewFrame(4, 4)
	if err = r.Render(context.Background(), frame); err != nil {
		t.Fatal(err)
	}

	// Mark every pixel; the second frame only rewrites pixels with
	// (x+y+1) even.
	marker := types.Vec3{9, 9, 9}
	for idx := range frame.Radiance {
		frame.Radiance[idx] = marker
	}
	if err = r.Render(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			got := frame.Radiance[y*4+x]
			if (x+y+1)%2 == 0 && got != background {
				t.Fatalf("pixel (%d, %d): expected traced pixel to be %v; got %v", x, y, background, got)
			}
			if (x+y+1)%2 != 0 && got != marker {
				t.Fatalf("pixel (%d, %d): expected skipped pixel to keep %v; got %v", x, y, marker, got)
			}
		}
	}
}

func TestRenderInterrupted(t *testing.T) {
	sc := emptyScene(t)
	r, err := NewDefault(sc, nil, nil, testOptions(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Render(ctx, tracer.NewFrame(4, 4))
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrInterrupted wrapping context.Canceled; got %v", err)
	}
}

func TestRenderApproxModes(t *testing.T) {
	sc := sphereScene(t)
	for _, mode := range []integrator.Mode{integrator.RPNN, integrator.MRPNN} {
		opts := testOptions(8, 8)
		opts.Mode = mode
		opts.LightDir = types.Vec3{0, 0, 1}

		// The renderer builds the transmittance field on demand.
		img, err := RenderImage(context.Background(), sc, opts)
		if err != nil {
			t.Fatalf("[%s] unexpected error %v", mode, err)
		}
		if len(img) != 64 {
			t.Fatalf("[%s] expected 64 pixels; got %d", mode, len(img))
		}
		if center := img[4*8+4]; center.Luminance() <= 0 || !center.IsFinite() {
			t.Fatalf("[%s] expected lit center pixel; got %v", mode, center)
		}
	}

	if _, err := sc.TrAtPosition(0, types.Vec3{}, types.Vec3{0, 0, 1}); err != nil {
		t.Fatalf("expected transmittance for the render light; got %v", err)
	}
}

func TestDenoiseDoesNotFeedBackIntoAccumulation(t *testing.T) {
	sc := sphereScene(t)
	sc.SetCheckerboard(false)

	render := func(denoise bool) *tracer.Frame {
		opts := testOptions(16, 16)
		opts.Seed = 3
		opts.LastPredict = true
		opts.Denoise = denoise
		r, err := NewDefault(sc, nil, nil, opts)
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()

		frame := tracer.NewFrame(16, 16)
		for i := 0; i < 3; i++ {
			if err = r.Render(context.Background(), frame); err != nil {
				t.Fatal(err)
			}
		}
		return frame
	}

	denoised := render(true)
	plain := render(false)
	if plain.Denoised != nil {
		t.Fatal("expected no denoised buffer when denoising is off")
	}
	if _, err := DenoiseHistogram(DenoiseRadius, DenoiseThreshold)(plain, nil); err != nil {
		t.Fatal(err)
	}

	for idx := range plain.Radiance {
		if denoised.Radiance[idx] != plain.Radiance[idx] {
			t.Fatalf("pixel %d: expected accumulated radiance %v; got %v", idx, plain.Radiance[idx], denoised.Radiance[idx])
		}
		if denoised.Denoised[idx] != plain.Denoised[idx] {
			t.Fatalf("pixel %d: expected denoised radiance %v; got %v", idx, plain.Denoised[idx], denoised.Denoised[idx])
		}
	}
}

func TestFrontLitBrighterThanBackLit(t *testing.T) {
	sc := sphereScene(t)

	var lum [2]float32
	for i, light := range []types.Vec3{{0, 0, 1}, {0, 0, -1}} {
		opts := testOptions(8, 8)
		opts.Alpha = 640
		opts.G = 0
		opts.MultiScatter = 1
		opts.SamplesPerPixel = 64
		opts.LightDir = light

		img, err := RenderImage(context.Background(), sc, opts)
		if err != nil {
			t.Fatal(err)
		}
		for y := 3; y <= 4; y++ {
			for x := 3; x <= 4; x++ {
				lum[i] += img[y*8+x].Luminance()
			}
		}
	}

	if !(lum[0] > 1.5*lum[1]) || lum[1] <= 0 {
		t.Fatalf("expected front-lit radiance (%f) to clearly exceed back-lit radiance (%f)", lum[0], lum[1])
	}
}

func TestRenderImageDeterministic(t *testing.T) {
	sc := sphereScene(t)
	opts := testOptions(8, 8)
	opts.Seed = 77

	a, err := RenderImage(context.Background(), sc, opts)
	if err != nil {
		t.Fatal(err)
	}
	opts.NumTracers = 3
	opts.TracerWorkers = 1
	b, err := RenderImage(context.Background(), sc, opts)
	if err != nil {
		t.Fatal(err)
	}
	for idx := range a {
		if a[idx] != b[idx] || math.IsNaN(float64(a[idx][0])) {
			t.Fatalf("pixel %d: expected identical estimates; got %v and %v", idx, a[idx], b[idx])
		}
	}
}
