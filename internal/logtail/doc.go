// Package logtail reads worker log files incrementally.
//
// # Overview
//
// Worker scripts append to plain-text log files while the dashboard polls
// them. This package turns "what was appended since last time" into a list
// of lines without ever re-reading bytes that were already delivered.
//
// # Core Functionality
//
//  1. ReadFrom: bounded incremental read from a saved byte offset
//  2. Read: last N lines of a file (ring buffer, one pass)
//  3. Follow: streaming follow mode backed by github.com/nxadm/tail
//
// # Incremental Reads
//
// ReadFrom seeks to the caller's offset, reads at most MaxReadBytes and
// returns the complete lines in that window plus the new offset:
//
//	chunk, err := logtail.ReadFrom(path, offset)
//	if err != nil {
//		// permission denied, ErrUnreadable, ...
//	}
//	offset = chunk.Offset
//
// Offsets count raw bytes, not characters, so they stay correct for
// multi-byte encodings. A line is only delivered once its newline has been
// written; a half-written trailing line is picked up on a later call. The
// exception is a single line larger than the read window, which is
// delivered in pieces so the reader cannot stall.
//
// # Encoding Fallback
//
// Workers on mixed platforms write UTF-8, GBK, GB18030 or UTF-16. Each read
// window is decoded with the first encoding in the configured list that
// accepts it (DefaultEncodings, overridable with WithEncodings). When none
// does, ReadFrom returns ErrUnreadable and leaves the offset where it was.
//
// Only the first window of a UTF-16 file carries a BOM, so later windows are
// ambiguous on their own. Callers keep the Chunk.Encoding of their last read
// and pass it back with WithPreferredEncoding; it is tried before the rest of
// the list. Byte-oriented encodings reject windows containing NUL bytes, which
// keeps them from claiming two-byte code units.
//
// # Error Handling
//
// Missing files are not errors: ReadFrom returns an empty chunk with the
// offset unchanged and Read returns nil, nil. A file shorter than the
// offset sets Chunk.Truncated and leaves restarting to the caller. Other
// I/O errors are returned wrapped.
//
// # Design Rationale
//
// The package holds no state. Offsets belong to the caller (the monitor
// registry), so clearing a script simply means forgetting its offset.
package logtail
