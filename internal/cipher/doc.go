// Package cipher holds the decode attempts that peel obfuscation layers off a
// buffer, and the detector that decides when a buffer is finished source.
//
// # Buffers
//
// A Buffer is immutable and tagged as text or raw bytes. Codecs never modify
// their input; each successful attempt returns a new Buffer.
//
// # Codecs
//
// Every Codec is total: it either returns a successor buffer that is
// non-empty and differs from its input, or reports itself inapplicable.
// Malformed input, decompression failures and foreign formats all collapse
// to Inapplicable.
//
//	set := cipher.NewSet()
//	attempt := set.Decode(cipher.Bytes(data))
//	if attempt.OK {
//		fmt.Println(attempt.Kind, attempt.Payload.Len())
//	}
//
// A Set applies its codecs in a fixed order and the first success wins:
//
//	exec_extraction, rot13, marshal, zlib, gzip, bz2, base64, base32, base85, hex
//
// WithOrder(OrderEncodingFirst) moves the base encodings ahead of the
// compression codecs, and WithExtended(true) appends zstd and lz4.
//
// # Detection
//
// SourceDetector rejects any buffer that still mentions decode or execute
// glue (exec(, zlib.decompress, ...) and otherwise accepts buffers carrying
// at least three distinct Python source markers.
//
//	detector := cipher.NewSourceDetector()
//	verdict := detector.Inspect(buf)
//	fmt.Println(verdict.Clean, verdict.Markers)
package cipher
