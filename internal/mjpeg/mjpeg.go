// Package mjpeg encodes frames to JPEG and frames them as a
// multipart/x-mixed-replace stream.
package mjpeg

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gocv.io/x/gocv"
)

// Stream constants.
const (
	Boundary    = "frame"
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary
	PartType    = "image/jpeg"

	DefaultQuality = 80
)

// ErrEmptyFrame is returned when asked to encode a frame with no pixels.
var ErrEmptyFrame = errors.New("mjpeg: empty frame")

// FrameEncoder compresses a frame to a still image.
type FrameEncoder interface {
	Encode(frame gocv.Mat) ([]byte, error)
}

// Encoder JPEG-encodes frames at a fixed quality.
type Encoder struct {
	quality int
}

// NewEncoder creates an Encoder. Qualities outside 1..100 fall back to the default.
func NewEncoder(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{quality: quality}
}

// Quality returns the JPEG quality in use.
func (e *Encoder) Quality() int {
	return e.quality
}

// Encode compresses frame and returns a copy of the JPEG bytes.
func (e *Encoder) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), e.quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}

// Chunk wraps one JPEG in its multipart part: boundary line, part headers,
// blank line, payload and trailing CRLF.
func Chunk(jpeg []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(jpeg) + 96)
	b.WriteString("--" + Boundary + "\r\n")
	b.WriteString("Content-Type: " + PartType + "\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(jpeg)) + "\r\n\r\n")
	b.Write(jpeg)
	b.WriteString("\r\n")
	return b.Bytes()
}

// Writer streams chunks to an HTTP response.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	frames  int
}

// NewWriter wraps w. Headers are written with the first chunk.
func NewWriter(w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// WriteChunk sends one pre-framed chunk and flushes it to the client.
func (mw *Writer) WriteChunk(chunk []byte) error {
	if !mw.started {
		h := mw.w.Header()
		h.Set("Content-Type", ContentType)
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Connection", "close")
		mw.w.WriteHeader(http.StatusOK)
		mw.started = true
	}

	if _, err := mw.w.Write(chunk); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if mw.flusher != nil {
		mw.flusher.Flush()
	}
	mw.frames++
	return nil
}

// Started reports whether any chunk (and so the headers) has been written.
func (mw *Writer) Started() bool {
	return mw.started
}

// Frames returns how many chunks were written.
func (mw *Writer) Frames() int {
	return mw.frames
}
