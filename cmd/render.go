package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/renderer"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/scene/reader"
	"github.com/achilleasa/nimbus/tracer"
	"github.com/achilleasa/nimbus/volume"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing volume file argument")
	}

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	renderCtx, cancel := interruptContext()
	defer cancel()

	// Load scene
	sc, err := reader.ReadScene(renderCtx, ctx.Args().First())
	if err != nil {
		return err
	}
	defer sc.Close()

	if err = applySceneFlags(renderCtx, ctx, sc); err != nil {
		return err
	}

	// Setup post-processing pipeline
	pipeline := renderer.DefaultPipeline(opts)
	pipeline.PostProcess = append(pipeline.PostProcess, renderer.SaveFrameBuffer(ctx.String("out")))
	if hdrOut := ctx.String("hdr-out"); hdrOut != "" {
		pipeline.PostProcess = append(pipeline.PostProcess, renderer.SaveRadianceEXR(hdrOut))
	}

	// Create renderer
	r, err := renderer.NewDefault(sc, tracer.PerfectScheduler(), pipeline, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	frame := tracer.NewFrame(int(opts.FrameW), int(opts.FrameH))
	frames := max(ctx.Int("frames"), 1)
	for i := 0; i < frames; i++ {
		if err = r.Render(renderCtx, frame); err != nil {
			return err
		}
	}

	// Display stats
	displayFrameStats(r.Stats())
	logger.Noticef("wrote frame to %s", ctx.String("out"))

	return nil
}

// Build render options from the command flags.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	opts := renderer.DefaultOptions(uint32(ctx.Int("width")), uint32(ctx.Int("height")))

	var err error
	if opts.Mode, err = integrator.ParseMode(ctx.String("mode")); err != nil {
		return opts, err
	}
	if opts.ToneType, err = renderer.ParseToneType(ctx.String("tone")); err != nil {
		return opts, err
	}
	if opts.LightDir, err = parseVec3(ctx.String("light")); err != nil {
		return opts, err
	}
	if opts.LightColor, err = parseVec3(ctx.String("light-color")); err != nil {
		return opts, err
	}

	opts.Alpha = float32(ctx.Float64("alpha"))
	opts.G = float32(ctx.Float64("g"))
	opts.MultiScatter = ctx.Int("multi-scatter")
	opts.SamplesPerPixel = uint32(ctx.Int("spp"))
	opts.Seed = ctx.Uint64("seed")
	opts.LastPredict = ctx.Bool("accumulate")
	opts.Denoise = ctx.Bool("denoise")
	opts.NumTracers = ctx.Int("tracers")

	deg := math.Pi / 180
	opts.Camera = scene.NewOrbitCamera(
		float32(ctx.Float64("yaw")*deg),
		float32(ctx.Float64("pitch")*deg),
		float32(ctx.Float64("distance")),
		float32(ctx.Float64("fov")),
		float32(opts.FrameW)/float32(max(opts.FrameH, 1)),
	)
	logger.Debug(opts.Camera.String())

	return opts, opts.Validate()
}

// Apply scene setting flags and load the environment map.
func applySceneFlags(loadCtx context.Context, ctx *cli.Context, sc *scene.Scene) error {
	sc.SetExposure(float32(ctx.Float64("exposure")))
	sc.SetEnvExposure(float32(ctx.Float64("env-exposure")))
	sc.SetCheckerboard(ctx.Bool("checkerboard"))
	sc.SetScatterRate(float32(ctx.Float64("scatter")))
	sc.SetSurfaceIOR(float32(ctx.Float64("ior")))

	if envFile := ctx.String("env"); envFile != "" {
		env, err := reader.ReadEnvironment(loadCtx, envFile)
		if err != nil {
			return err
		}
		sc.SetEnvironment(env)
		return nil
	}

	if skyColor := ctx.String("sky"); skyColor != "" {
		sky, err := parseVec3(skyColor)
		if err != nil {
			return err
		}
		sc.SetEnvironment(volume.UniformEnvironment(sky))
	}
	return nil
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Render time"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", fmt.Sprintf("%d frame(s)", stats.FrameCount), "TOTAL", stats.RenderTime.String()})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
