package v4l2

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/source"
	"github.com/bryanchriswhite/FlexiView/internal/source/sourcetest"
)

// fakeTree lays out sysfs names and matching device files under t.TempDir.
func fakeTree(t *testing.T, names map[string]string) *Provider {
	t.Helper()
	root := t.TempDir()
	sys := filepath.Join(root, "sys")
	dev := filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(dev, 0o755))
	for node, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(sys, node), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sys, node, "name"), []byte(name+"\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dev, node), nil, 0o644))
	}
	p := NewProvider(func(int) (source.Capturer, error) {
		return sourcetest.NewCapturer(sourcetest.Frames(2)), nil
	})
	p.SysRoot = sys
	p.DevRoot = dev
	return p
}

func TestDevicesFiltersInfrared(t *testing.T) {
	p := fakeTree(t, map[string]string{
		"video0":  "Integrated Camera: Integrated C",
		"video2":  "Integrated Camera: Integrated I",
		"video4":  "Integrated IR Camera",
		"video10": "USB Infrared Sensor",
		"media0":  "ignored",
	})
	devs, err := p.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "video4", devs[0].ID)
	assert.Equal(t, 0, devs[0].Index)
	assert.Equal(t, "video10", devs[1].ID)
	assert.Equal(t, filepath.Join(p.DevRoot, "video10"), devs[1].Path)
}

func TestExclusiveLockContention(t *testing.T) {
	p := fakeTree(t, map[string]string{"video4": "IR Camera"})
	devs, err := p.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)

	first, err := p.Open(context.Background(), devs[0], infrared.AccessExclusive)
	require.NoError(t, err)

	_, err = p.Open(context.Background(), devs[0], infrared.AccessExclusive)
	assert.ErrorIs(t, err, infrared.ErrDeviceContention)

	require.NoError(t, first.Stop())
	again, err := p.Open(context.Background(), devs[0], infrared.AccessExclusive)
	require.NoError(t, err)
	require.NoError(t, again.Stop())
}

func TestSelectFallsBackToSharedLock(t *testing.T) {
	p := fakeTree(t, map[string]string{"video4": "IR Camera"})
	a, err := infrared.Select(context.Background(), p, 0, false)
	require.NoError(t, err)
	defer a.Stop()

	b, err := infrared.Select(context.Background(), p, 0, true)
	require.NoError(t, err)
	require.NoError(t, b.Stop())
}

func TestDeviceDeliversFrames(t *testing.T) {
	p := fakeTree(t, map[string]string{"video4": "IR Camera"})
	s, err := infrared.Open(context.Background(), p, 0, true)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		_, err := s.ReadNext(context.Background())
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestIlluminationAlternates(t *testing.T) {
	dark := frame.Filled(2, 2, color.RGBA{R: 20, G: 20, B: 20, A: 255})
	bright := frame.Filled(2, 2, color.RGBA{R: 120, G: 120, B: 120, A: 255})

	var tag Illumination
	assert.False(t, tag.Tag(dark))
	assert.True(t, tag.Tag(bright))
	assert.False(t, tag.Tag(dark))
	assert.True(t, tag.Tag(bright))

	// Flat frames keep alternating.
	assert.False(t, tag.Tag(bright))
	assert.True(t, tag.Tag(bright))
}

func openDevice(t *testing.T, open OpenFunc) infrared.Device {
	t.Helper()
	p := fakeTree(t, map[string]string{"video2": "Integrated IR Camera"})
	p.open = open
	devices, err := p.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	d, err := p.Open(context.Background(), devices[0], infrared.AccessShared)
	require.NoError(t, err)
	return d
}

func TestFailedReadsBackOff(t *testing.T) {
	c := sourcetest.NewCapturer(nil)
	d := openDevice(t, func(int) (source.Capturer, error) { return c, nil })
	require.NoError(t, d.Start(func(infrared.RawFrame) {}))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, d.Stop())
	assert.LessOrEqual(t, c.Reads(), 20)
	assert.True(t, c.Closed())
}

// stuckCapturer blocks in Read until released.
type stuckCapturer struct {
	release chan struct{}
	closed  chan struct{}
}

func (c *stuckCapturer) Read() (*image.RGBA, bool) {
	<-c.release
	return nil, false
}

func (c *stuckCapturer) Close() error {
	close(c.closed)
	return nil
}

func TestStopAbandonsStuckReader(t *testing.T) {
	old := stopTimeout
	stopTimeout = 50 * time.Millisecond
	defer func() { stopTimeout = old }()

	c := &stuckCapturer{release: make(chan struct{}), closed: make(chan struct{})}
	defer close(c.release)
	d := openDevice(t, func(int) (source.Capturer, error) { return c, nil })
	require.NoError(t, d.Start(func(infrared.RawFrame) {}))

	stopped := make(chan error, 1)
	go func() { stopped <- d.Stop() }()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a stuck reader")
	}

	select {
	case <-c.closed:
		t.Fatal("capturer closed while a read was in flight")
	default:
	}
}
