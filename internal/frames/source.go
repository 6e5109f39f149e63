package frames

import (
	"context"
	"image"
	"time"
)

// FrameSource is a seekable decoded view over a recorded clip. The container
// and codec are handled by whatever produced the source (a platform media
// element, an ffmpeg wrapper, a synthetic source in tests); the extractor
// only needs sequential seek-and-read semantics.
//
// Seek must complete (decoder ready) before Frame is called, and sources are
// not safe for concurrent use: one extraction owns one source. Independent
// clips may be processed concurrently through separate sources.
type FrameSource interface {
	// Duration reports the clip length.
	Duration() time.Duration

	// Seek positions the decoder at the given offset from the clip start.
	Seek(ctx context.Context, offset time.Duration) error

	// Frame rasterizes the frame at the current position.
	Frame() (image.Image, error)
}
