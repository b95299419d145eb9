package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProbe struct {
	name string
}

func (m *mockProbe) Name() string        { return m.name }
func (m *mockProbe) Description() string { return "mock probe" }
func (m *mockProbe) Run(_ context.Context, target types.Target, progress ProgressFunc) ([]types.Finding, error) {
	progress.Notify("payload")
	return []types.Finding{
		{Name: "mock finding", Severity: types.SeverityInfo, URL: target.URL},
	}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &mockProbe{name: "test"}
	r.Register(p)

	got, err := r.Get("test")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrProbeNotFound))
}

func TestRegistry_AllSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProbe{name: "b"})
	r.Register(&mockProbe{name: "a"})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name())
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProbe{name: "xss"})
	r.Register(&mockProbe{name: "jwt"})

	probes, missing := r.Resolve([]string{"jwt", "nope", "xss"})
	require.Len(t, probes, 2)
	assert.Equal(t, "jwt", probes[0].Name())
	assert.Equal(t, "xss", probes[1].Name())
	assert.Equal(t, []string{"nope"}, missing)
}
