package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRegistry struct{ err error }

func (f failingRegistry) List() ([]Descriptor, error) { return nil, f.err }

var twoMonitors = Static{
	{Name: "left", Width: 1920, Height: 1080, Primary: true},
	{Name: "right", X: 1920, Width: 1280, Height: 1024},
}

func TestResolveInRange(t *testing.T) {
	d := Resolve(twoMonitors, 1)
	assert.Equal(t, "right", d.Name)
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, 1920, d.X)
}

func TestResolveOutOfRangeFallsBackToFirst(t *testing.T) {
	for _, idx := range []int{-1, 2, 99} {
		d := Resolve(twoMonitors, idx)
		assert.Equal(t, "left", d.Name, "index %d", idx)
	}
}

func TestResolveEnumerationFailure(t *testing.T) {
	assert.Equal(t, Fallback, Resolve(failingRegistry{err: errors.New("boom")}, 0))
	assert.Equal(t, Fallback, Resolve(Static{}, 0))
	assert.Equal(t, Fallback, Resolve(nil, 3))
}

func TestChainUsesFirstNonEmpty(t *testing.T) {
	c := Chain{failingRegistry{err: errors.New("no x11")}, Static{}, twoMonitors}
	got, err := c.List()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = Chain{failingRegistry{err: errors.New("no x11")}}.List()
	assert.EqualError(t, err, "no x11")
}

func TestSortMonitorsPrimaryFirst(t *testing.T) {
	m := []Descriptor{
		{Name: "b", X: 1920},
		{Name: "a", X: 0},
		{Name: "p", X: 3840, Primary: true},
	}
	sortMonitors(m)
	assert.Equal(t, []string{"p", "a", "b"}, []string{m[0].Name, m[1].Name, m[2].Name})
	assert.Equal(t, 2, m[2].Index)
}

func TestDescriptorGeometry(t *testing.T) {
	d := Descriptor{X: 10, Y: 20, Width: 300, Height: 200}
	assert.Equal(t, 300, d.Size().X)
	assert.Equal(t, 220, d.Bounds().Max.Y)
}
