package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrUnknownFormat      = errors.New("volume: unknown volume format")
	ErrUnsupportedVersion = errors.New("volume: unsupported format version")
	ErrInvalidResolution  = errors.New("volume: resolution must be a power of two no larger than 1024")
	ErrTruncated          = errors.New("volume: truncated voxel data")
	ErrTooLarge           = errors.New("volume: volume exceeds the voxel budget")
)

const (
	// Current version of the native format.
	FormatVersion uint32 = 1

	// The largest number of voxels a volume may hold.
	MaxVoxels = 512 * 512 * 512

	maxResolution = 1024

	// Voxel data is decoded in chunks of this many values so that the
	// buffer only grows as data actually arrives.
	decodeChunk = 64 * 1024
)

var (
	nativeMagic = []byte("NVOL")
	zstdMagic   = []byte{0x28, 0xB5, 0x2F, 0xFD}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// The compression applied when encoding a volume.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionSnappy
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// Get the compression that matches a file extension.
func CompressionFromExt(ext string) Compression {
	switch ext {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".sz", ".snappy":
		return CompressionSnappy
	}
	return CompressionNone
}

// A decoded density volume. Data holds Resolution^3 densities in x-fastest
// order.
type Volume struct {
	Resolution int
	Data       []float32
}

// Decode a volume stream. Native ("NVOL") files and headerless float32 cubes
// are supported, optionally wrapped in a zstd or snappy stream. Compression
// is detected from the stream contents.
func Decode(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(snappyMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return decodeUncompressed(bufio.NewReader(dec))
	case bytes.HasPrefix(head, snappyMagic):
		return decodeUncompressed(bufio.NewReader(snappy.NewReader(br)))
	}
	return decodeUncompressed(br)
}

func decodeUncompressed(br *bufio.Reader) (*Volume, error) {
	head, _ := br.Peek(len(nativeMagic))
	if bytes.Equal(head, nativeMagic) {
		return decodeNative(br)
	}
	return decodeRaw(br)
}

func decodeNative(r io.Reader) (*Volume, error) {
	var header struct {
		Magic      [4]byte
		Version    uint32
		Resolution uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("volume: could not read header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	res := int(header.Resolution)
	if err := validateResolution(res); err != nil {
		return nil, err
	}

	count := res * res * res
	data := make([]float32, 0, min(count, decodeChunk))
	buf := make([]byte, 4*decodeChunk)
	for len(data) < count {
		chunk := buf[:4*min(count-len(data), decodeChunk)]
		if _, err := io.ReadFull(r, chunk); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: expected %d values; got at most %d", ErrTruncated, count, len(data)+len(chunk)/4)
			}
			return nil, err
		}
		data = appendFloats(data, chunk)
	}
	return &Volume{Resolution: res, Data: data}, nil
}

// Decode a headerless cube. The resolution is inferred from the byte count.
func decodeRaw(r io.Reader) (*Volume, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 4*MaxVoxels+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > 4*MaxVoxels {
		return nil, fmt.Errorf("%w: more than %d values", ErrTooLarge, MaxVoxels)
	}
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, ErrUnknownFormat
	}
	count := len(raw) / 4
	res := int(math.Round(math.Cbrt(float64(count))))
	if res*res*res != count {
		return nil, fmt.Errorf("%w: %d floats do not form a cube", ErrUnknownFormat, count)
	}
	if err = validateResolution(res); err != nil {
		return nil, err
	}

	return &Volume{
		Resolution: res,
		Data:       appendFloats(make([]float32, 0, count), raw),
	}, nil
}

// Append the little-endian float32 values in raw to dst.
func appendFloats(dst []float32, raw []byte) []float32 {
	for i := 0; i+4 <= len(raw); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
	}
	return dst
}

// Encode a volume in the native format.
func Encode(w io.Writer, vol *Volume, compression Compression) error {
	if err := validateResolution(vol.Resolution); err != nil {
		return err
	}
	if len(vol.Data) != vol.Resolution*vol.Resolution*vol.Resolution {
		return fmt.Errorf("%w: expected %d values; got %d", ErrTruncated, vol.Resolution*vol.Resolution*vol.Resolution, len(vol.Data))
	}

	var (
		out   io.Writer = w
		flush func() error
	)
	switch compression {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		out, flush = enc, enc.Close
	case CompressionSnappy:
		enc := snappy.NewBufferedWriter(w)
		out, flush = enc, enc.Close
	}

	bw := bufio.NewWriter(out)
	header := []any{nativeMagic, FormatVersion, uint32(vol.Resolution), vol.Data}
	for _, field := range header {
		if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if flush != nil {
		return flush()
	}
	return nil
}

func validateResolution(res int) error {
	if res < 1 || res > maxResolution || res&(res-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidResolution, res)
	}
	if res*res*res > MaxVoxels {
		return fmt.Errorf("%w: %d^3 voxels; limit is %d", ErrTooLarge, res, MaxVoxels)
	}
	return nil
}
