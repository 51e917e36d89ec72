// Package streamdec decodes images incrementally, as their bytes arrive.
//
// A Session sits between a bitstream Engine and a Host. Each call to
// Session.Feed hands one chunk of the compressed stream to the engine,
// checks how many rows the engine has finished, and copies the new rows to
// the surface owned by the host, permuting channels into the requested
// ChannelOrder and optionally downscaling through a Scaler. The host is
// told about every range of new rows with exactly one Invalidation, so it
// can repaint partially loaded images.
//
// Chunk boundaries do not affect the result: feeding a stream in one piece
// or one byte at a time produces the same pixels and covers the same area.
//
// Engines for JPEG and WebP live in the jpeg and webp subpackages. Importing
// one registers it for Decode, DecodeConfig and Sniff:
//
//	import _ "github.com/gen2brain/streamdec/jpeg"
//
//	canvas := &streamdec.Canvas{}
//	s, err := streamdec.NewSession(jpeg.NewEngine, canvas, &streamdec.Options{Order: streamdec.OrderBGRA})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	for chunk := range chunks {
//		if err := s.Feed(chunk); err != nil {
//			return err
//		}
//	}
//
//	return s.Finish()
//
// Errors are reported as *DecodeError with Kind KindData for corrupt input
// and KindDecoder for engine failures and broken invariants.
package streamdec
