package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// Markers used by a guest to talk over a text stream.
// Format: \x00BIO:{json}\x00
const (
	framePrefix = "\x00BIO:"
	frameSuffix = "\x00"
	readySignal = "\x00BIO_READY\x00"
)

// EncodeFrame renders f in the marker format understood by Framer.
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(framePrefix)+len(data)+len(frameSuffix))
	out = append(out, framePrefix...)
	out = append(out, data...)
	return append(out, frameSuffix...), nil
}

// ReadySignal is written by a guest once it accepts frames.
func ReadySignal() []byte {
	return []byte(readySignal)
}

// Framer is an io.Writer that extracts frames from a mixed text stream.
// Text outside frames is passed to the passthrough writer; each decoded
// frame is handed to the callback.
type Framer struct {
	onFrame     func(Frame)
	passthrough io.Writer

	mu      sync.Mutex
	buf     bytes.Buffer
	text    bytes.Buffer
	readyCh chan struct{}
	ready   bool
	invalid int
}

func NewFramer(onFrame func(Frame), passthrough io.Writer) *Framer {
	return &Framer{
		onFrame:     onFrame,
		passthrough: passthrough,
		readyCh:     make(chan struct{}),
	}
}

func (f *Framer) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(data)
	f.buf.Write(data)

	for {
		content := f.buf.String()

		startIdx := strings.Index(content, framePrefix)
		if idx := strings.Index(content, readySignal); idx != -1 && (startIdx == -1 || idx < startIdx) {
			f.emitText(content[:idx])
			f.buf.Reset()
			f.buf.WriteString(content[idx+len(readySignal):])
			if !f.ready {
				f.ready = true
				close(f.readyCh)
			}
			continue
		}

		if startIdx == -1 {
			keep := partialMarker(content)
			f.emitText(content[:len(content)-keep])
			f.buf.Reset()
			f.buf.WriteString(content[len(content)-keep:])
			break
		}

		f.emitText(content[:startIdx])

		body := content[startIdx+len(framePrefix):]
		endIdx := strings.Index(body, frameSuffix)
		if endIdx == -1 {
			f.buf.Reset()
			f.buf.WriteString(content[startIdx:])
			break
		}

		f.buf.Reset()
		f.buf.WriteString(body[endIdx+len(frameSuffix):])

		var frame Frame
		if err := json.Unmarshal([]byte(body[:endIdx]), &frame); err != nil {
			f.invalid++
			continue
		}
		if f.onFrame != nil {
			f.onFrame(frame)
		}
	}

	return n, nil
}

// partialMarker returns the length of a trailing marker prefix that may be
// completed by the next write.
func partialMarker(s string) int {
	i := strings.LastIndexByte(s, 0)
	if i == -1 {
		return 0
	}
	tail := s[i:]
	if strings.HasPrefix(framePrefix, tail) || strings.HasPrefix(readySignal, tail) {
		return len(tail)
	}
	return 0
}

func (f *Framer) emitText(s string) {
	if s == "" {
		return
	}
	f.text.WriteString(s)
	if f.passthrough != nil {
		io.WriteString(f.passthrough, s)
	}
}

// Ready is closed when the ready signal has been seen.
func (f *Framer) Ready() <-chan struct{} {
	return f.readyCh
}

// Text returns everything written outside frames so far.
func (f *Framer) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text.String()
}

// Invalid returns the number of frames that failed to decode.
func (f *Framer) Invalid() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalid
}
