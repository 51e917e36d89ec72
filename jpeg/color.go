package jpeg

// convertRow converts the current MCU row to RGBA rows of d.pix, upsampling
// chroma by sample replication.
func (d *Decoder) convertRow() {
	y0 := d.mby * d.mbSizeY
	rows := min(d.mbSizeY, d.height-y0)
	stride := d.width * 4

	for yr := 0; yr < rows; yr++ {
		dst := d.pix[(y0+yr)*stride : (y0+yr+1)*stride]

		switch {
		case d.ncomp == 1:
			grayRow(dst, d.plane(0, yr), d.width)
		case d.isRGB:
			rgbRow(dst, d.plane(0, yr), d.plane(1, yr), d.plane(2, yr), &d.comp, d.width)
		default:
			yCbCrRow(dst, d.plane(0, yr), d.plane(1, yr), d.plane(2, yr), &d.comp, d.width)
		}
	}
}

// plane returns the samples of component i that cover image row yr of the MCU row.
func (d *Decoder) plane(i, yr int) []byte {
	c := &d.comp[i]
	off := (yr >> c.shY) * c.stride

	return c.pixels[off : off+c.stride]
}

// grayRow expands luminance samples to opaque RGBA.
func grayRow(dst, y []byte, width int) {
	for x := 0; x < width; x++ {
		lum := y[x]
		p := dst[x*4 : x*4+4 : x*4+4]
		p[0], p[1], p[2], p[3] = lum, lum, lum, 255
	}
}

// rgbRow interleaves R, G and B planes into opaque RGBA.
func rgbRow(dst, r, g, b []byte, comp *[3]component, width int) {
	sr, sg, sb := comp[0].shX, comp[1].shX, comp[2].shX

	for x := 0; x < width; x++ {
		p := dst[x*4 : x*4+4 : x*4+4]
		p[0], p[1], p[2], p[3] = r[x>>sr], g[x>>sg], b[x>>sb], 255
	}
}

// yCbCrRow converts YCbCr planes to opaque RGBA using the JFIF equations
// in 8-bit fixed point.
func yCbCrRow(dst, yp, cbp, crp []byte, comp *[3]component, width int) {
	sy, scb, scr := comp[0].shX, comp[1].shX, comp[2].shX

	for x := 0; x < width; x++ {
		y := int32(yp[x>>sy]) << 8
		cb := int32(cbp[x>>scb]) - 128
		cr := int32(crp[x>>scr]) - 128

		p := dst[x*4 : x*4+4 : x*4+4]
		p[0] = clip((y + 359*cr + 128) >> 8)
		p[1] = clip((y - 88*cb - 183*cr + 128) >> 8)
		p[2] = clip((y + 454*cb + 128) >> 8)
		p[3] = 255
	}
}
