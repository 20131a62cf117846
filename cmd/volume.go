package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	volfile "github.com/achilleasa/nimbus/asset/volume"
	"github.com/achilleasa/nimbus/scene/reader"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Generate a test volume and write it to disk. The compression is selected
// by the output file extension.
func GenerateVolume(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing output file argument")
	}
	outFile := ctx.Args().First()

	res := ctx.Int("resolution")
	radius := float32(ctx.Float64("radius")) * float32(res)
	vol := volfile.Sphere(res, radius, float32(ctx.Float64("density")))

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()

	compression := volfile.CompressionFromExt(filepath.Ext(outFile))
	if err = volfile.Encode(f, vol, compression); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	logger.Noticef("wrote %d^3 volume to %s (compression: %s)", res, outFile, compression)
	return nil
}

// Display volume statistics.
func ShowVolumeInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing volume file argument")
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Volume", "Resolution", "Min", "Max", "Mean", "Occupied voxels"})
	loadCtx, cancel := interruptContext()
	defer cancel()

	for idx := 0; idx < ctx.NArg(); idx++ {
		volFile := ctx.Args().Get(idx)
		vol, err := reader.ReadVolume(loadCtx, volFile)
		if err != nil {
			return err
		}

		minDensity, maxDensity, mean, occupied := vol.Stats()
		table.Append([]string{
			volFile,
			fmt.Sprintf("%d^3", vol.Resolution),
			fmt.Sprintf("%.4f", minDensity),
			fmt.Sprintf("%.4f", maxDensity),
			fmt.Sprintf("%.4f", mean),
			fmt.Sprintf("%d (%02.1f %%)", occupied, 100*float64(occupied)/float64(len(vol.Data))),
		})
	}

	table.Render()
	logger.Noticef("volume information\n%s", buf.String())
	return nil
}
