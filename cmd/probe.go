package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/scene/reader"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Sample the density mip levels at a world-space position and estimate the
// transmittance along a ray.
func Probe(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing volume file argument")
	}
	pos, err := parseVec3(ctx.String("pos"))
	if err != nil {
		return err
	}
	dir, err := parseVec3(ctx.String("dir"))
	if err != nil {
		return err
	}
	alpha := float32(ctx.Float64("alpha"))

	loadCtx, cancel := interruptContext()
	defer cancel()

	sc, err := reader.ReadScene(loadCtx, ctx.Args().First())
	if err != nil {
		return err
	}
	defer sc.Close()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Mip level", "Density", "Density (lerp)"})
	for mip := 0; mip < volume.DensityMipLevels; mip++ {
		density, err := sc.DensityAtPosition(mip, pos)
		if err != nil {
			return err
		}
		lerped, err := sc.DensityAtPositionLerp(float32(mip), pos)
		if err != nil {
			return err
		}
		table.Append([]string{fmt.Sprintf("%d", mip), fmt.Sprintf("%.5f", density), fmt.Sprintf("%.5f", lerped)})
	}
	table.Render()
	logger.Noticef("density at %v\n%s", pos, buf.String())

	snap, err := sc.Snapshot()
	if err != nil {
		return err
	}
	tr := integrator.GetTr(snap, pos, dir, alpha, ctx.Int("samples"), ctx.Uint64("seed"))
	logger.Noticef("transmittance from %v along %v (alpha %.2f): %.5f", pos, dir, alpha, tr[0])

	return probeLightTransmittance(ctx, sc, pos, alpha)
}

// Report the baked transmittance towards the light if requested.
func probeLightTransmittance(ctx *cli.Context, sc *scene.Scene, pos types.Vec3, alpha float32) error {
	if ctx.String("light") == "" {
		return nil
	}
	lightDir, err := parseVec3(ctx.String("light"))
	if err != nil {
		return err
	}
	if _, err = sc.UpdateTransmittance(lightDir, alpha, false); err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Mip level", "Transmittance"})
	for mip := 0; mip < volume.TransmittanceMipLevels; mip++ {
		tr, err := sc.TrAtPosition(mip, pos, lightDir)
		if err != nil {
			return err
		}
		table.Append([]string{fmt.Sprintf("%d", mip), fmt.Sprintf("%.5f", tr)})
	}
	table.Render()
	logger.Noticef("transmittance towards light %v\n%s", lightDir, buf.String())
	return nil
}
