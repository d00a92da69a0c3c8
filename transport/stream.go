package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxLineSize bounds a single inbound frame read by Serve.
const MaxLineSize = 4 << 20

// Stream exchanges frames over a writer and an inbound frame source.
// Outbound frames are written as one JSON object per line. Inbound frames
// arrive through Serve or Deliver; requests and notifications go to the
// attached dispatcher, responses settle pending requests.
type Stream struct {
	w   io.Writer
	wmu sync.Mutex
	log *zap.Logger

	encode func(Frame) ([]byte, error)

	mu         sync.Mutex
	dispatcher interop.Dispatcher
	pending    map[string]chan Frame
	closed     bool

	wg sync.WaitGroup
}

type StreamOption func(*Stream)

func WithStreamLogger(l *zap.Logger) StreamOption {
	return func(s *Stream) {
		s.log = l
	}
}

// WithMarkerFraming writes frames in the \x00BIO:{json}\x00 marker format
// instead of newline-delimited JSON.
func WithMarkerFraming() StreamOption {
	return func(s *Stream) {
		s.encode = EncodeFrame
	}
}

func NewStream(w io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		w:       w,
		log:     zap.NewNop(),
		encode:  encodeLine,
		pending: make(map[string]chan Frame),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func encodeLine(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Attach sets the dispatcher for inbound calls.
func (s *Stream) Attach(d interop.Dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

func (s *Stream) write(f Frame) error {
	data, err := s.encode(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Stream) Notify(ctx context.Context, call contract.Call) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.write(Frame{Type: FrameNotify, Call: &call})
}

func (s *Stream) Request(ctx context.Context, call contract.Call) (string, error) {
	id := uuid.NewString()
	ch := make(chan Frame, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(Frame{ID: id, Type: FrameRequest, Call: &call}); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return "", ErrClosed
		}
		if resp.Error != "" {
			return "", errors.New(resp.Error)
		}
		return resp.Result, nil
	}
}

// Deliver handles one inbound frame. Calls are dispatched on their own
// goroutine so a handler may issue requests on the same stream.
func (s *Stream) Deliver(ctx context.Context, f Frame) {
	switch f.Type {
	case FrameResponse:
		s.mu.Lock()
		ch, ok := s.pending[f.ID]
		if ok {
			select {
			case ch <- f:
			default:
				ok = false
			}
		}
		s.mu.Unlock()
		if !ok {
			s.log.Warn("response for unknown request", zap.String("id", f.ID))
		}

	case FrameNotify, FrameRequest:
		if f.Call == nil {
			s.log.Warn("frame without call", zap.String("type", f.Type))
			return
		}
		s.mu.Lock()
		d := s.dispatcher
		closed := s.closed
		if d != nil && !closed {
			s.wg.Add(1)
		}
		s.mu.Unlock()
		if closed {
			return
		}
		if d == nil {
			s.log.Warn("no dispatcher attached", zap.String("function", f.Call.Function))
			if f.Type == FrameRequest {
				s.reply(Frame{ID: f.ID, Type: FrameResponse, Error: ErrNotConnected.Error()})
			}
			return
		}
		go func() {
			defer s.wg.Done()
			result := d.Dispatch(ctx, *f.Call)
			if f.Type == FrameRequest {
				s.reply(Frame{ID: f.ID, Type: FrameResponse, Result: result})
			}
		}()

	default:
		s.log.Warn("unknown frame type", zap.String("type", f.Type))
	}
}

func (s *Stream) reply(f Frame) {
	if err := s.write(f); err != nil {
		s.log.Error("write response", zap.String("id", f.ID), zap.Error(err))
	}
}

// Serve reads newline-delimited frames from r until EOF, an error or
// context cancellation. In-flight dispatches finish before Serve returns.
// The caller owns r; closing it unblocks a pending read after
// cancellation.
func (s *Stream) Serve(ctx context.Context, r io.Reader) error {
	defer s.wg.Wait()

	lines := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			var f Frame
			if err := json.Unmarshal(line, &f); err != nil {
				s.log.Warn("invalid frame", zap.Error(err))
				continue
			}
			s.Deliver(ctx, f)
		}
	}
}

// Close fails pending requests with ErrClosed and waits for in-flight
// dispatches.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
