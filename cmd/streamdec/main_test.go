package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/gen2brain/streamdec"
	"github.com/gen2brain/streamdec/internal/config"
)

func testRunner(t *testing.T, mutate func(*config.Config)) *runner {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	r, err := newRunner(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newRunner failed: %v", err)
	}

	return r
}

func grayJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, img, &stdjpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func TestDecodeJPEG(t *testing.T) {
	out := t.TempDir()
	r := testRunner(t, func(c *config.Config) {
		c.ChunkSize = 100
		c.Order = "BGRA"
		c.OutDir = out
	})

	res, err := r.decode("gray.jpg", bytes.NewReader(grayJPEG(t, 24, 20)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if res.format != "jpeg" || res.size != image.Pt(24, 20) || res.err != nil {
		t.Errorf("result = %+v", res)
	}

	if res.stats.Rows != 20 || res.stats.Feeds < 2 {
		t.Errorf("stats = %+v", res.stats)
	}

	f, err := os.Open(filepath.Join(out, "gray.png"))
	if err != nil {
		t.Fatalf("missing output: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}

	c := color.RGBAModel.Convert(img.At(3, 3)).(color.RGBA)
	for _, v := range []uint8{c.R, c.G, c.B} {
		if v < 125 || v > 131 {
			t.Errorf("pixel = %+v, want gray 128", c)
		}
	}
}

func TestDecodeZstd(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := enc.Write(grayJPEG(t, 16, 16)); err != nil {
		t.Fatal(err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	r := testRunner(t, func(c *config.Config) { c.Target = "4x4" })

	res, err := r.decode("gray.jpg.zst", &buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if res.format != "jpeg" || res.size != image.Pt(16, 16) {
		t.Errorf("result = %+v", res)
	}
}

func TestDecodeSizeOnly(t *testing.T) {
	r := testRunner(t, func(c *config.Config) { c.SizeOnly = true })

	res, err := r.decode("gray.jpg", bytes.NewReader(grayJPEG(t, 40, 32)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if res.size != image.Pt(40, 32) || res.stats.Rows != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestDecodeUnknown(t *testing.T) {
	r := testRunner(t, nil)

	if _, err := r.decode("x.bmp", bytes.NewReader([]byte("BM\x00\x00"))); !errors.Is(err, streamdec.ErrUnknownFormat) {
		t.Errorf("decode returned %v, want ErrUnknownFormat", err)
	}
}

func TestRunPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), grayJPEG(t, 8, 8), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := testRunner(t, func(c *config.Config) { c.Workers = 2 })

	if failed := r.runPaths([]string{dir}); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestToRGBA(t *testing.T) {
	img := &image.RGBA{Pix: []byte{30, 20, 10, 40}, Stride: 4, Rect: image.Rect(0, 0, 1, 1)}

	got := toRGBA(img, streamdec.OrderBGRA)
	if !bytes.Equal(got.Pix, []byte{10, 20, 30, 40}) {
		t.Errorf("BGRA: got %v", got.Pix)
	}

	argb := &image.RGBA{Pix: []byte{40, 10, 20, 30}, Stride: 4, Rect: image.Rect(0, 0, 1, 1)}
	if got := toRGBA(argb, streamdec.OrderARGB); !bytes.Equal(got.Pix, []byte{10, 20, 30, 40}) {
		t.Errorf("ARGB: got %v", got.Pix)
	}

	if got := toRGBA(img, streamdec.OrderRGBA); got != img {
		t.Error("RGBA surface was copied")
	}
}
