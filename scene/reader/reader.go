package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/achilleasa/nimbus/asset"
	volfile "github.com/achilleasa/nimbus/asset/volume"
	texture "github.com/achilleasa/nimbus/asset/texure"
	"github.com/achilleasa/nimbus/log"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/volume"
)

var logger = log.New("reader")

// The stream read when a volume path is "-".
var stdin io.Reader = os.Stdin

// Load a density volume from a local file, an http/https URL or, if
// pathToVolume is "-", from stdin.
func ReadVolume(ctx context.Context, pathToVolume string) (*volfile.Volume, error) {
	var (
		res *asset.Resource
		err error
	)
	if pathToVolume == "-" {
		res = asset.NewResourceFromStream("stdin", stdin)
	} else if res, err = asset.NewResource(ctx, pathToVolume, nil); err != nil {
		return nil, err
	}
	defer res.Close()

	logger.Noticef("reading volume from %s", res.Path())
	start := time.Now()

	vol, err := volfile.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("reader: could not decode %s: %w", res.Path(), err)
	}

	logger.Noticef("read %d^3 volume %s in %d ms", vol.Resolution, res.Name(), time.Since(start).Nanoseconds()/1000000)
	return vol, nil
}

// Load a density volume and create a scene for it. The returned scene has
// its host data populated and its density cascade built.
func ReadScene(ctx context.Context, pathToVolume string) (*scene.Scene, error) {
	vol, err := ReadVolume(ctx, pathToVolume)
	if err != nil {
		return nil, err
	}

	sc, err := scene.NewFromData(vol.Resolution, vol.Data)
	if err != nil {
		return nil, err
	}
	if err = sc.Update(); err != nil {
		sc.Close()
		return nil, err
	}
	return sc, nil
}

// Load a lat-long environment map.
func ReadEnvironment(ctx context.Context, pathToImage string) (*volume.Environment, error) {
	res, err := asset.NewResource(ctx, pathToImage, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	logger.Noticef("reading environment map from %s", res.Path())
	tex, err := texture.New(res)
	if err != nil {
		return nil, err
	}
	logger.Debugf("environment map: %dx%d (%s)", tex.Width, tex.Height, tex.Format)

	return volume.NewEnvironment(tex.Width, tex.Height, tex.Data)
}
