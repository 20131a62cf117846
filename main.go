package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/nimbus/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "nimbus"
	app.Usage = "render volumetric clouds using multiple scattering"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error); -v and -vv take precedence",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "append log output to a file instead of stdout",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "render",
			Usage:  "render a density volume",
			Action: nil,
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "render single frame",
					Description: `
Render a frame of a density volume lit by a directional light and an optional
environment map. Supported volume formats are native NVOL files and raw
float32 cubes, optionally zstd or snappy compressed.

The tone-mapped frame is written as a PNG image; the linear radiance can also
be saved as an OpenEXR image.`,
					ArgsUsage: "volume_file",
					Flags: []cli.Flag{
						cli.IntFlag{
							Name:  "width",
							Value: 512,
							Usage: "frame width",
						},
						cli.IntFlag{
							Name:  "height",
							Value: 512,
							Usage: "frame height",
						},
						cli.IntFlag{
							Name:  "spp",
							Value: 16,
							Usage: "samples per pixel",
						},
						cli.IntFlag{
							Name:  "frames",
							Value: 1,
							Usage: "number of progressive frames to render",
						},
						cli.BoolFlag{
							Name:  "accumulate",
							Usage: "merge progressive frames into a single estimate",
						},
						cli.BoolFlag{
							Name:  "checkerboard",
							Usage: "trace half of the pixels on every frame after the first one",
						},
						cli.StringFlag{
							Name:  "mode, m",
							Value: "pt",
							Usage: "radiance estimator (pt, rpnn, mrpnn)",
						},
						cli.StringFlag{
							Name:  "light",
							Value: "0,1,0",
							Usage: "direction towards the key light",
						},
						cli.StringFlag{
							Name:  "light-color",
							Value: "1,1,1",
							Usage: "key light color",
						},
						cli.Float64Flag{
							Name:  "alpha",
							Value: 64,
							Usage: "extinction scale",
						},
						cli.Float64Flag{
							Name:  "g",
							Value: 0.857,
							Usage: "henyey-greenstein anisotropy",
						},
						cli.Float64Flag{
							Name:  "scatter",
							Value: 1,
							Usage: "single scattering albedo",
						},
						cli.Float64Flag{
							Name:  "ior",
							Value: 1,
							Usage: "index of refraction at the volume boundary",
						},
						cli.IntFlag{
							Name:  "multi-scatter",
							Value: 512,
							Usage: "max scattering events (pt) or scattering octaves (rpnn, mrpnn)",
						},
						cli.StringFlag{
							Name:  "env",
							Usage: "environment map (exr, png, jpeg, tiff or bmp)",
						},
						cli.StringFlag{
							Name:  "sky",
							Value: "0.2,0.3,0.5",
							Usage: "uniform sky radiance used when no environment map is given",
						},
						cli.Float64Flag{
							Name:  "env-exposure",
							Value: 1.0,
							Usage: "environment radiance scale",
						},
						cli.Float64Flag{
							Name:  "yaw",
							Usage: "camera yaw in degrees",
						},
						cli.Float64Flag{
							Name:  "pitch",
							Value: 15,
							Usage: "camera pitch in degrees",
						},
						cli.Float64Flag{
							Name:  "distance",
							Value: 2,
							Usage: "camera distance from the volume center",
						},
						cli.Float64Flag{
							Name:  "fov",
							Value: 45,
							Usage: "vertical field of view in degrees",
						},
						cli.Float64Flag{
							Name:  "exposure",
							Value: 1.0,
							Usage: "camera exposure for tone-mapping",
						},
						cli.StringFlag{
							Name:  "tone",
							Value: "aces",
							Usage: "tone mapping operator (linear, reinhard, aces, uncharted)",
						},
						cli.BoolFlag{
							Name:  "denoise",
							Usage: "apply histogram-guided denoising",
						},
						cli.IntFlag{
							Name:  "tracers",
							Value: 1,
							Usage: "number of tracers to split the frame between",
						},
						cli.Uint64Flag{
							Name:  "seed",
							Usage: "random seed",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
						cli.StringFlag{
							Name:  "hdr-out",
							Usage: "optional OpenEXR filename for the linear radiance",
						},
					},
					Action: cmd.RenderFrame,
				},
			},
		},
		{
			Name:  "volume",
			Usage: "generate and inspect density volumes",
			Subcommands: []cli.Command{
				{
					Name:  "generate",
					Usage: "generate a sphere volume",
					Description: `
Generate a sphere of constant density. The output compression is selected by
the file extension: .zst for zstd, .sz for snappy, anything else is written
uncompressed.`,
					ArgsUsage: "out_file",
					Flags: []cli.Flag{
						cli.IntFlag{
							Name:  "resolution, r",
							Value: 64,
							Usage: "grid resolution (power of two)",
						},
						cli.Float64Flag{
							Name:  "radius",
							Value: 0.3,
							Usage: "sphere radius as a fraction of the grid size",
						},
						cli.Float64Flag{
							Name:  "density",
							Value: 1,
							Usage: "sphere density",
						},
					},
					Action: cmd.GenerateVolume,
				},
				{
					Name:      "info",
					Usage:     "print volume statistics",
					ArgsUsage: "volume_file1 volume_file2 ...",
					Action:    cmd.ShowVolumeInfo,
				},
			},
		},
		{
			Name:      "probe",
			Usage:     "sample density and transmittance at a point",
			ArgsUsage: "volume_file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "pos",
					Value: "0,0,0",
					Usage: "world-space position",
				},
				cli.StringFlag{
					Name:  "dir",
					Value: "0,1,0",
					Usage: "ray direction for the transmittance estimate",
				},
				cli.StringFlag{
					Name:  "light",
					Usage: "report baked transmittance towards this light direction",
				},
				cli.Float64Flag{
					Name:  "alpha",
					Value: 64,
					Usage: "extinction scale",
				},
				cli.IntFlag{
					Name:  "samples",
					Value: 1024,
					Usage: "number of ratio tracking samples",
				},
				cli.Uint64Flag{
					Name:  "seed",
					Usage: "random seed",
				},
			},
			Action: cmd.Probe,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
