// Command streamdec decodes JPEG and WebP images incrementally and reports
// how the rows arrived.
//
// Inputs are files, directories (decoded by a pool of workers), zstd
// compressed files ending in .zst, or a URL streamed with -url.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fasthttp"

	"github.com/gen2brain/streamdec"
	"github.com/gen2brain/streamdec/internal/config"
	"github.com/gen2brain/streamdec/jpeg"
	"github.com/gen2brain/streamdec/webp"
)

// sniffSize covers the longest registered magic.
const sniffSize = 16

type result struct {
	format string
	size   image.Point
	stats  streamdec.Stats
	err    error // data error after a partial decode
}

// runner decodes inputs with one configuration.
type runner struct {
	cfg       *config.Config
	order     streamdec.ChannelOrder
	target    image.Point
	factories map[string]streamdec.EngineFactory
	log       *slog.Logger
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	chunk := flag.Int("chunk", 0, "Bytes passed to each Feed (0 = config or 32768)")
	target := flag.String("target", "", "Downscale to WxH")
	order := flag.String("order", "", "Channel order of the surface: RGBA, BGRA, ARGB or ABGR")
	sizeOnly := flag.Bool("size-only", false, "Stop once the image size is known")
	outDir := flag.String("out", "", "Directory for PNG output")
	workers := flag.Int("workers", 0, "Number of parallel workers for directories")
	debug := flag.Bool("debug", false, "Debug logging")
	url := flag.String("url", "", "Decode an image streamed over HTTP")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *chunk > 0 {
		cfg.ChunkSize = *chunk
	}
	if *target != "" {
		cfg.Target = *target
	}
	if *order != "" {
		cfg.Order = *order
	}
	if *sizeOnly {
		cfg.SizeOnly = true
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *debug {
		cfg.Debug = true
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	r, err := newRunner(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *url != "" {
		if err := r.fetch(*url); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: streamdec [flags] file|dir ... or streamdec -url URL\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if failed := r.runPaths(flag.Args()); failed > 0 {
		os.Exit(1)
	}
}

func newRunner(cfg *config.Config, logger *slog.Logger) (*runner, error) {
	order, err := streamdec.ParseChannelOrder(cfg.Order)
	if err != nil {
		return nil, err
	}

	var target image.Point
	if cfg.Target != "" {
		if target, err = config.ParseSize(cfg.Target); err != nil {
			return nil, err
		}
	}

	return &runner{
		cfg:    cfg,
		order:  order,
		target: target,
		factories: map[string]streamdec.EngineFactory{
			"jpeg": jpeg.NewFactory(&jpeg.Options{MaxPixels: cfg.JPEG.MaxPixels}),
			"webp": webp.NewFactory(&webp.Options{MaxPixels: cfg.WebP.MaxPixels, MaxBytes: cfg.WebP.MaxBytes}),
		},
		log: logger,
	}, nil
}

// decode runs one session over r. Name is used for logs, output naming and
// to detect zstd compression.
func (r *runner) decode(name string, src io.Reader) (*result, error) {
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()

		src = dec
		name = strings.TrimSuffix(name, ".zst")
	}

	br := bufio.NewReaderSize(src, max(r.cfg.ChunkSize, sniffSize))

	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	format, _, ok := streamdec.Sniff(head)
	if !ok {
		return nil, streamdec.ErrUnknownFormat
	}

	factory, ok := r.factories[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", streamdec.ErrUnknownFormat, format)
	}

	canvas := &streamdec.Canvas{}
	s, err := streamdec.NewSession(factory, canvas, &streamdec.Options{
		Order:      r.order,
		TargetSize: r.target,
		SizeOnly:   r.cfg.SizeOnly,
		ChunkSize:  r.cfg.ChunkSize,
		Logger:     r.log.With("input", name, "format", format),
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	res := &result{format: format}

	err = streamdec.Pump(s, br, r.cfg.ChunkSize)
	res.size = canvas.Size()
	res.stats = s.Stats()

	if err != nil {
		if !streamdec.IsDataError(err) || canvas.Image() == nil {
			return nil, err
		}

		res.err = err
	}

	if r.cfg.OutDir != "" && !r.cfg.SizeOnly && canvas.Image() != nil {
		if err := r.writePNG(name, canvas.Image()); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// decodeFile decodes the named file.
func (r *runner) decodeFile(file string) (*result, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return r.decode(filepath.Base(file), f)
}

// fetch streams url into a session as the response body arrives.
func (r *runner) fetch(url string) error {
	timeout := time.Duration(r.cfg.HTTP.TimeoutS) * time.Second
	client := &fasthttp.Client{
		ReadTimeout:        timeout,
		WriteTimeout:       timeout,
		StreamResponseBody: true,
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetUserAgent(r.cfg.HTTP.UserAgent)

	if err := client.Do(req, resp); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.CloseBodyStream()

	if sc := resp.StatusCode(); sc != fasthttp.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, sc)
	}

	var body io.Reader = resp.BodyStream()
	if body == nil {
		body = bytes.NewReader(resp.Body())
	}

	name := path.Base(string(req.URI().Path()))
	if name == "/" || name == "." {
		name = "download"
	}

	res, err := r.decode(name, body)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}

	r.report(url, res)

	return nil
}

// runPaths decodes files and directories with a worker pool and returns
// the number of failed inputs.
func (r *runner) runPaths(args []string) int64 {
	var files []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)

			continue
		}

		if !fi.IsDir() {
			files = append(files, arg)

			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading directory: %v\n", err)

			continue
		}

		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}

	var passed, partial, failed int64

	var totalsMu sync.Mutex
	var totals streamdec.Stats

	jobs := make(chan string, len(files))
	var wg sync.WaitGroup

	start := time.Now()

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				res, err := r.decodeFile(file)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					r.log.Error("decode failed", "input", file, "error", err)

					continue
				}

				if res.err != nil {
					atomic.AddInt64(&partial, 1)
				} else {
					atomic.AddInt64(&passed, 1)
				}

				totalsMu.Lock()
				totals.Add(res.stats)
				totalsMu.Unlock()

				r.report(file, res)
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)
	wg.Wait()

	if len(files) > 1 {
		fmt.Printf("\n=== Results ===\n")
		fmt.Printf("Decoded: %d passed, %d partial, %d failed\n", passed, partial, failed)
		fmt.Printf("Fed %d bytes in %d feeds, transferred %d rows with %d invalidations in %v\n",
			totals.BytesFed, totals.Feeds, totals.Rows, totals.Invalidations, time.Since(start).Round(time.Millisecond))
	}

	return failed
}

var reportMu sync.Mutex

// report prints one line per decoded input.
func (r *runner) report(input string, res *result) {
	reportMu.Lock()
	defer reportMu.Unlock()

	status := "ok"
	if res.err != nil {
		status = "partial: " + res.err.Error()
	}

	fmt.Printf("%s: %s %dx%d, %d feeds, %d bytes, %d rows, %d invalidations, %s\n",
		input, res.format, res.size.X, res.size.Y,
		res.stats.Feeds, res.stats.BytesFed, res.stats.Rows, res.stats.Invalidations, status)
}

// writePNG stores the surface in the output directory.
func (r *runner) writePNG(name string, img *image.RGBA) error {
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return err
	}

	out := filepath.Join(r.cfg.OutDir, strings.TrimSuffix(name, filepath.Ext(name))+".png")

	f, err := os.Create(out)
	if err != nil {
		return err
	}

	if err := png.Encode(f, toRGBA(img, r.order)); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

// toRGBA undoes the channel permutation of a surface so it can be encoded.
func toRGBA(img *image.RGBA, order streamdec.ChannelOrder) *image.RGBA {
	if order == streamdec.OrderRGBA || order == (streamdec.ChannelOrder{}) {
		return img
	}

	dst := image.NewRGBA(img.Rect)
	for i := 0; i+4 <= len(img.Pix); i += 4 {
		s := img.Pix[i : i+4 : i+4]
		d := dst.Pix[i : i+4 : i+4]
		for c := 0; c < 4; c++ {
			d[order[c]] = s[c]
		}
	}

	return dst
}
