package shuffle

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names the compression applied to spilled runs.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec parses a codec name. The empty string means CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd:
		return CodecZstd, nil
	case CodecLZ4:
		return CodecLZ4, nil
	default:
		return "", fmt.Errorf("unknown spill codec %q", name)
	}
}

// Ext returns the file extension used for runs written with c.
func (c Codec) Ext() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecLZ4:
		return ".lz4"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type funcReadCloser struct {
	io.Reader
	close func()
}

func (r funcReadCloser) Close() error {
	r.close()
	return nil
}

// wrapWriter returns a writer compressing into w. Closing it flushes the
// codec but leaves w open.
func (c Codec) wrapWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return enc, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

// wrapReader returns a reader decompressing r.
func (c Codec) wrapReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CodecZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return funcReadCloser{Reader: dec, close: dec.Close}, nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}
