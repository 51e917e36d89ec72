package jpeg

import (
	"errors"
	"fmt"

	"github.com/gen2brain/streamdec"
)

// vlcCode represents a single entry in the pre-calculated Huffman lookup table.
type vlcCode struct {
	bits, code uint8
}

// component stores information about a single color component.
type component struct {
	id                 int    // Component identifier.
	ssX, ssY           int    // Sampling factors.
	shX, shY           uint   // log2 of the upsampling factors.
	stride             int    // Bytes per row of the MCU row plane.
	qtSel              int    // Quantization table selector.
	dcTabSel, acTabSel int    // Huffman table selectors.
	dcPred             int    // DC prediction value.
	pixels             []byte // Samples of the current MCU row.
}

type phase int

const (
	phaseSOI phase = iota
	phaseMarkers
	phaseScan
	phaseDone
)

// checkpoint is the decoder state at the start of an MCU row.
type checkpoint struct {
	pos       int
	buf       uint64
	bufBits   int
	markerHit bool
	dcPred    [3]int
	rstCount  int
	nextRst   int
}

// Decoder is a streamdec.Engine for baseline JPEG.
type Decoder struct {
	data []byte // Unconsumed input.
	pos  int    // Read position in data.

	phase     phase
	err       error
	closed    bool
	maxPixels int

	width, height     int
	mbWidth, mbHeight int
	mbSizeX, mbSizeY  int
	ncomp             int
	comp              [3]component
	sofSeen, scanDone bool
	isRGB             bool
	qtUsed, qtAvail   int
	qtab              [4][64]uint16
	vlcAvail          int
	vlc               *vlcTables
	rstInterval       int

	buf       uint64
	bufBits   int
	markerHit bool
	rstCount  int
	nextRst   int
	mby       int // Next MCU row.
	block     [64]int32
	saved     checkpoint

	pix      []byte
	rowsDone int
	frame    int // Index of the last frame header seen.
}

// errDecode is used for internal panics during the hot decoding path.
type errDecode struct{ error }

// panic triggers an internal panic to signal a decoding error in the hot path.
func (d *Decoder) panic(err error) {
	panic(errDecode{err})
}

// NewDecoder returns a decoder producing RGBA rows. JPEG has no alpha, so
// both output modes give the same bytes.
func NewDecoder(mode streamdec.OutputMode, opts *Options) (*Decoder, error) {
	if mode != streamdec.ModePremultipliedRGBA && mode != streamdec.ModeRGBA {
		return nil, fmt.Errorf("jpeg: unsupported output mode %v", mode)
	}

	d := &Decoder{maxPixels: DefaultMaxPixels}
	if opts != nil && opts.MaxPixels > 0 {
		d.maxPixels = opts.MaxPixels
	}

	return d, nil
}

// Append consumes the next piece of the stream.
func (d *Decoder) Append(p []byte) streamdec.Status {
	if d.closed {
		return streamdec.StatusInvalidParam
	}

	if d.err != nil {
		return statusOf(d.err)
	}

	if d.phase == phaseDone {
		return streamdec.StatusOK
	}

	d.data = append(d.data, p...)

	err := d.run()

	// Drop consumed input.
	n := copy(d.data, d.data[d.pos:])
	d.data = d.data[:n]
	d.pos = 0

	switch {
	case err == nil:
		d.data = nil

		return streamdec.StatusOK
	case errors.Is(err, errNeedData):
		return streamdec.StatusSuspended
	default:
		d.err = err
		d.data = nil

		return statusOf(err)
	}
}

// Progress reports the rows decoded so far.
func (d *Decoder) Progress() streamdec.Progress {
	if d.pix == nil {
		return streamdec.NoProgress
	}

	return streamdec.Progress{
		LastRow: d.rowsDone - 1,
		Width:   d.width,
		Height:  d.height,
		Stride:  d.width * 4,
		Pix:     d.pix,
		Frame:   d.frame,
	}
}

// Err returns the error that stopped the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the decoder buffers.
func (d *Decoder) Close() {
	if d.closed {
		return
	}

	d.closed = true
	if d.vlc != nil {
		vlcPool.Put(d.vlc)
		d.vlc = nil
	}

	d.data = nil
	d.pix = nil
	for i := range d.comp {
		d.comp[i].pixels = nil
	}
}

func statusOf(err error) streamdec.Status {
	switch {
	case errors.Is(err, ErrUnsupported):
		return streamdec.StatusUnsupportedFeature
	case errors.Is(err, ErrOutOfMemory):
		return streamdec.StatusOutOfMemory
	default:
		return streamdec.StatusBitstreamError
	}
}

// avail returns the number of unread input bytes.
func (d *Decoder) avail() int {
	return len(d.data) - d.pos
}

// decode16 reads a 16-bit big-endian integer.
func decode16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

// run advances the decoder as far as the buffered input allows.
// It returns nil once EOI is reached and errNeedData when input runs out.
func (d *Decoder) run() error {
	for {
		switch d.phase {
		case phaseSOI:
			if d.avail() < 2 {
				return errNeedData
			}

			if d.data[d.pos] != 0xFF || d.data[d.pos+1] != 0xD8 {
				return ErrNoJPEG
			}

			d.pos += 2
			d.phase = phaseMarkers
		case phaseMarkers:
			if err := d.nextMarker(); err != nil {
				return err
			}
		case phaseScan:
			if err := d.decodeRows(); err != nil {
				return err
			}

			// The entropy-coded segment is complete; drop its trailing bits.
			d.buf, d.bufBits, d.markerHit = 0, 0, false
			d.scanDone = true
			d.phase = phaseMarkers
		case phaseDone:
			return nil
		}
	}
}

// nextMarker parses one marker and its segment once they are fully buffered.
func (d *Decoder) nextMarker() error {
	if d.avail() < 2 {
		return errNeedData
	}

	if d.data[d.pos] != 0xFF {
		if d.scanDone {
			// Garbage between the scan and the next marker.
			d.pos++

			return nil
		}

		return ErrSyntax
	}

	marker := d.data[d.pos+1]
	switch {
	case marker == 0xFF:
		// Fill byte.
		d.pos++

		return nil
	case marker == 0xD9: // EOI
		d.pos += 2
		if !d.scanDone {
			return ErrSyntax
		}
		d.phase = phaseDone

		return nil
	case marker >= 0xD0 && marker <= 0xD7, marker == 0x01:
		// Standalone markers outside a scan.
		d.pos += 2

		return nil
	}

	if d.avail() < 4 {
		return errNeedData
	}

	length := decode16(d.data[d.pos+2:])
	if length < 2 {
		return ErrSyntax
	}

	if d.avail() < 2+length {
		return errNeedData
	}

	seg := d.data[d.pos+4 : d.pos+2+length]
	d.pos += 2 + length

	switch marker {
	case 0xC0, 0xC1: // SOF0, SOF1 (Huffman, sequential)
		return d.decodeSOF(seg)
	case 0xC4: // DHT
		return d.decodeDHT(seg)
	case 0xDB: // DQT
		return d.decodeDQT(seg)
	case 0xDD: // DRI
		return d.decodeDRI(seg)
	case 0xDA: // SOS
		return d.decodeSOS(seg)
	case 0xEE: // APP14 (Adobe)
		d.decodeAPP14(seg)

		return nil
	case 0xC2, 0xC3, 0xC5, 0xC6, 0xC7, 0xC9, 0xCA, 0xCB, 0xCC, 0xCD, 0xCE, 0xCF:
		// Progressive, lossless, hierarchical and arithmetic coding.
		return fmt.Errorf("marker 0x%02X: %w", marker, ErrUnsupported)
	default:
		// APPn, COM, DNL and others carry nothing we need.
		return nil
	}
}

// decodeAPP14 detects RGB images from the Adobe color transform flag.
func (d *Decoder) decodeAPP14(seg []byte) {
	if len(seg) >= 12 && string(seg[:5]) == "Adobe" && seg[11] == 0 {
		d.isRGB = true
	}
}

// decodeSOF decodes the Start of Frame segment and allocates the output.
func (d *Decoder) decodeSOF(seg []byte) error {
	if d.sofSeen {
		if !d.scanDone {
			return fmt.Errorf("second frame header: %w", ErrSyntax)
		}

		// A new frame after a complete one. Report it and stop.
		d.frame++
		d.phase = phaseDone

		return nil
	}

	if len(seg) < 6 {
		return ErrSyntax
	}

	if seg[0] != 8 {
		return fmt.Errorf("%d-bit precision: %w", seg[0], ErrUnsupported)
	}

	d.height = decode16(seg[1:])
	d.width = decode16(seg[3:])
	if d.height == 0 {
		// The height would follow in a DNL marker.
		return fmt.Errorf("deferred height: %w", ErrUnsupported)
	}

	if d.width == 0 {
		return ErrSyntax
	}

	d.ncomp = int(seg[5])
	switch d.ncomp {
	case 1, 3:
	default:
		return fmt.Errorf("%d components: %w", d.ncomp, ErrUnsupported)
	}

	if len(seg) < 6+d.ncomp*3 {
		return ErrSyntax
	}

	ssxMax, ssyMax := 1, 1
	for i := 0; i < d.ncomp; i++ {
		p := seg[6+i*3:]
		c := &d.comp[i]
		c.id = int(p[0])
		c.ssX = int(p[1]) >> 4
		c.ssY = int(p[1]) & 15
		if c.ssX == 0 || c.ssX&(c.ssX-1) != 0 || c.ssY == 0 || c.ssY&(c.ssY-1) != 0 {
			return fmt.Errorf("sampling factor %dx%d: %w", c.ssX, c.ssY, ErrUnsupported)
		}

		c.qtSel = int(p[2])
		if c.qtSel&0xFC != 0 {
			return ErrSyntax
		}

		d.qtUsed |= 1 << c.qtSel
		ssxMax = max(ssxMax, c.ssX)
		ssyMax = max(ssyMax, c.ssY)
	}

	if d.ncomp == 1 {
		// A single component is never interleaved; its MCU is one block.
		d.comp[0].ssX, d.comp[0].ssY = 1, 1
		ssxMax, ssyMax = 1, 1
	} else if d.comp[0].id == 'R' && d.comp[1].id == 'G' && d.comp[2].id == 'B' {
		d.isRGB = true
	}

	d.mbSizeX = ssxMax << 3
	d.mbSizeY = ssyMax << 3
	d.mbWidth = (d.width + d.mbSizeX - 1) / d.mbSizeX
	d.mbHeight = (d.height + d.mbSizeY - 1) / d.mbSizeY

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		c.shX = log2(ssxMax / c.ssX)
		c.shY = log2(ssyMax / c.ssY)
		c.stride = d.mbWidth * c.ssX << 3
	}

	if d.width*d.height > d.maxPixels {
		return fmt.Errorf("%dx%d exceeds %d pixels: %w", d.width, d.height, d.maxPixels, ErrOutOfMemory)
	}

	d.pix = make([]byte, d.width*d.height*4)
	d.sofSeen = true

	return nil
}

func log2(n int) uint {
	var s uint
	for n > 1 {
		n >>= 1
		s++
	}

	return s
}

// decodeDHT decodes the Define Huffman Table segment and builds the
// 16-bit lookup tables.
func (d *Decoder) decodeDHT(seg []byte) error {
	if d.vlc == nil {
		d.vlc = vlcPool.Get().(*vlcTables)
	}

	for len(seg) >= 17 {
		i := int(seg[0])
		if i&0xEE != 0 {
			return ErrSyntax
		}

		i = (i | (i >> 3)) & 3 // Table index: 0-1 for DC, 2-3 for AC.

		counts := seg[1:17]
		n := 0
		for _, num := range counts {
			n += int(num)
		}

		if n > 256 || len(seg) < 17+n {
			return ErrSyntax
		}

		values := seg[17 : 17+n]
		vlc := &d.vlc[i]
		*vlc = [65536]vlcCode{}

		var huffCode uint32
		k := 0
		for codeLen := 1; codeLen <= 16; codeLen++ {
			shift := 16 - codeLen
			for c := 0; c < int(counts[codeLen-1]); c++ {
				base := huffCode << shift
				if base+(1<<shift) > 65536 {
					return ErrSyntax
				}

				entry := vlcCode{bits: uint8(codeLen), code: values[k]}
				for j := uint32(0); j < 1<<shift; j++ {
					vlc[base+j] = entry
				}

				huffCode++
				k++
			}

			huffCode <<= 1
		}

		d.vlcAvail |= 1 << i
		seg = seg[17+n:]
	}

	if len(seg) != 0 {
		return ErrSyntax
	}

	return nil
}

// decodeDQT decodes the Define Quantization Table segment. Tables are kept
// in zigzag order, as stored.
func (d *Decoder) decodeDQT(seg []byte) error {
	for len(seg) > 0 {
		pq, tq := int(seg[0])>>4, int(seg[0])&15
		if pq > 1 || tq > 3 {
			return ErrSyntax
		}

		size := 64 << pq
		if len(seg) < 1+size {
			return ErrSyntax
		}

		t := &d.qtab[tq]
		for j := 0; j < 64; j++ {
			if pq == 0 {
				t[j] = uint16(seg[1+j])
			} else {
				t[j] = uint16(decode16(seg[1+2*j:]))
			}
		}

		d.qtAvail |= 1 << tq
		seg = seg[1+size:]
	}

	return nil
}

// decodeDRI decodes the Define Restart Interval segment.
func (d *Decoder) decodeDRI(seg []byte) error {
	if len(seg) < 2 {
		return ErrSyntax
	}

	d.rstInterval = decode16(seg)

	return nil
}

// decodeSOS decodes the Start of Scan header and prepares the MCU row planes.
func (d *Decoder) decodeSOS(seg []byte) error {
	if !d.sofSeen {
		return fmt.Errorf("scan before frame header: %w", ErrSyntax)
	}

	if d.scanDone {
		return fmt.Errorf("multiple scans: %w", ErrUnsupported)
	}

	if len(seg) < 4+2*d.ncomp {
		return ErrSyntax
	}

	if int(seg[0]) != d.ncomp {
		return fmt.Errorf("non-interleaved scan: %w", ErrUnsupported)
	}

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		p := seg[1+2*i:]
		if int(p[0]) != c.id {
			return ErrSyntax
		}

		c.dcTabSel = int(p[1]) >> 4
		c.acTabSel = int(p[1]) & 15
		if c.dcTabSel > 1 || c.acTabSel > 1 {
			return ErrSyntax
		}

		if d.vlcAvail&(1<<c.dcTabSel) == 0 || d.vlcAvail&(1<<(c.acTabSel+2)) == 0 {
			return fmt.Errorf("undefined Huffman table: %w", ErrSyntax)
		}
	}

	if d.qtUsed&^d.qtAvail != 0 {
		return fmt.Errorf("undefined quantization table: %w", ErrSyntax)
	}

	p := seg[1+2*d.ncomp:]
	if p[0] != 0 || p[1] != 63 || p[2] != 0 {
		return fmt.Errorf("spectral selection: %w", ErrUnsupported)
	}

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		c.pixels = make([]byte, c.stride*c.ssY<<3)
		c.dcPred = 0
	}

	d.buf, d.bufBits, d.markerHit = 0, 0, false
	d.rstCount = d.rstInterval
	d.nextRst = 0
	d.mby = 0
	d.phase = phaseScan

	return nil
}
