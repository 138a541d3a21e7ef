package stream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkWritesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpssim.bin")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteFrame([]byte{1, 2, 3, 4}))
	require.NoError(t, s.WriteFrame([]byte{5, 6}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)
}

func TestFileSinkBadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "gpssim.bin"))
	assert.Error(t, err)
}

func TestBufferSinkKeepsLastFrame(t *testing.T) {
	s := NewBufferSink()
	assert.Empty(t, s.Frame())

	require.NoError(t, s.WriteFrame([]byte{1, 2, 3}))
	require.NoError(t, s.WriteFrame([]byte{9, 8}))
	assert.Equal(t, []byte{9, 8}, s.Frame())

	// the sink copies the input frame
	in := []byte{7, 7, 7}
	require.NoError(t, s.WriteFrame(in))
	in[0] = 0
	assert.Equal(t, []byte{7, 7, 7}, s.Frame())
}

type fakeDevice struct {
	blocks [][]byte
	err    error
	closed bool
}

func (d *fakeDevice) Transmit(p []byte) error {
	if d.err != nil {
		return d.err
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	d.blocks = append(d.blocks, cp)
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func TestSDRSinkForwardsToDevice(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSDRSink(dev)

	require.NoError(t, s.WriteFrame([]byte{1, 2}))
	require.NoError(t, s.Close())
	assert.Len(t, dev.blocks, 1)
	assert.True(t, dev.closed)

	dev.err = errors.New("usb stall")
	assert.Error(t, s.WriteFrame([]byte{3}))
}

func TestCountingSink(t *testing.T) {
	s := &CountingSink{}
	require.NoError(t, s.WriteFrame(make([]byte, 10)))
	require.NoError(t, s.WriteFrame(make([]byte, 5)))
	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, int64(15), s.Bytes)
}
