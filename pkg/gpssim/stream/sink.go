// Package stream provides the sample sinks the simulator writes I/Q
// frames to: file, in-memory buffer and SDR front-end adapters.
package stream

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// Sink consumes one 100 ms frame of interleaved I/Q samples at a time.
// WriteFrame may block; the orchestrator only calls it between frames.
type Sink interface {
	WriteFrame(p []byte) error
	Close() error
}

// FileSink writes frames to a binary file with no header
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// NewFileSink creates or truncates the output file
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return &FileSink{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// WriteFrame appends one frame to the file
func (s *FileSink) WriteFrame(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

// Close flushes buffered samples and closes the file
func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// BufferSink retains the most recent frame for inspection through the
// sample-buffer API
type BufferSink struct {
	mu   sync.RWMutex
	last []byte
}

// NewBufferSink returns an empty buffer sink
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// WriteFrame replaces the retained frame with a copy of p
func (s *BufferSink) WriteFrame(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.last) < len(p) {
		s.last = make([]byte, len(p))
	}
	s.last = s.last[:len(p)]
	copy(s.last, p)
	return nil
}

// Frame returns a read-only view of the most recent frame. The slice is
// only valid until the next WriteFrame.
func (s *BufferSink) Frame() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Close is a no-op for the buffer sink
func (s *BufferSink) Close() error { return nil }

// Transmitter is the contract an SDR front-end driver implements. The
// HackRF USB driver is an external collaborator; anything that accepts
// 8-bit interleaved I/Q at the configured sample rate fits here.
type Transmitter interface {
	// Transmit sends one block of interleaved signed 8-bit I/Q samples
	Transmit(p []byte) error
	Close() error
}

// SDRSink adapts a Transmitter into a frame sink
type SDRSink struct {
	dev Transmitter
}

// NewSDRSink wraps an SDR front-end driver. The simulator must be
// configured for 8-bit samples; the driver defines the sample rate and
// centre frequency (L1).
func NewSDRSink(dev Transmitter) *SDRSink {
	return &SDRSink{dev: dev}
}

// WriteFrame forwards the frame to the device, blocking on backpressure
func (s *SDRSink) WriteFrame(p []byte) error {
	return s.dev.Transmit(p)
}

// Close shuts the device down
func (s *SDRSink) Close() error {
	return s.dev.Close()
}

// CountingSink discards frames while counting bytes, for tests and
// throughput measurements
type CountingSink struct {
	Frames int
	Bytes  int64
}

func (s *CountingSink) WriteFrame(p []byte) error {
	s.Frames++
	s.Bytes += int64(len(p))
	return nil
}

func (s *CountingSink) Close() error { return nil }
