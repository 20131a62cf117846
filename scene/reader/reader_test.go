package reader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	volfile "github.com/achilleasa/nimbus/asset/volume"
	"github.com/achilleasa/nimbus/types"
)

func TestReadScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sphere.nvol.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	err = volfile.Encode(f, volfile.Sphere(16, 5, 0.5), volfile.CompressionZstd)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	sc, err := ReadScene(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Close()

	if sc.Resolution() != 16 {
		t.Fatalf("expected resolution 16; got %d", sc.Resolution())
	}
	center, err := sc.DensityAtPosition(0, types.Vec3{})
	if err != nil {
		t.Fatal(err)
	}
	if center != 0.5 {
		t.Fatalf("expected center density 0.5; got %f", center)
	}
}

func TestReadSceneErrors(t *testing.T) {
	if _, err := ReadScene(context.Background(), filepath.Join(t.TempDir(), "missing.nvol")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist; got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.nvol")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadScene(context.Background(), path); !errors.Is(err, volfile.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat; got %v", err)
	}
}

func TestReadVolumeFromStdin(t *testing.T) {
	var buf bytes.Buffer
	if err := volfile.Encode(&buf, volfile.Sphere(8, 2, 0.25), volfile.CompressionSnappy); err != nil {
		t.Fatal(err)
	}
	defer func(orig io.Reader) { stdin = orig }(stdin)
	stdin = &buf

	vol, err := ReadVolume(context.Background(), "-")
	if err != nil {
		t.Fatal(err)
	}
	if vol.Resolution != 8 {
		t.Fatalf("expected resolution 8; got %d", vol.Resolution)
	}
}

func TestReadSceneCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = volfile.Encode(w, volfile.Sphere(8, 2, 0.25), volfile.CompressionNone)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadScene(ctx, server.URL+"/cloud.nvol"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}

	sc, err := ReadScene(context.Background(), server.URL+"/cloud.nvol")
	if err != nil {
		t.Fatal(err)
	}
	sc.Close()
}

func TestReadEnvironment(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.RGBA{255, 255, 255, 255})
		img.Set(x, 1, color.RGBA{0, 0, 0, 255})
	}
	path := filepath.Join(t.TempDir(), "sky.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	err = png.Encode(f, img)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	env, err := ReadEnvironment(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := env.Size(); w != 4 || h != 2 {
		t.Fatalf("expected 4x2 environment; got %dx%d", w, h)
	}
	if avg := env.Average(); avg[0] < 0.49 || avg[0] > 0.51 {
		t.Fatalf("expected average ~0.5; got %v", avg)
	}
}
