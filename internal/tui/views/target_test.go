package views

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetModelProbes(t *testing.T) {
	m := NewTargetModel()
	assert.Empty(t, m.Probes())
	assert.Contains(t, m.View(), "Scan: auto")

	m.SetProbes([]string{"xss", "sqli"})
	assert.Equal(t, []string{"xss", "sqli"}, m.Probes())
}

func TestTargetModelView(t *testing.T) {
	m := NewTargetModel()
	m.SetProbes([]string{"misconfig", "jwt"})
	view := m.View()

	assert.Contains(t, view, "Surface")
	assert.Contains(t, view, "Scan: misconfig, jwt")
	assert.Contains(t, view, "Enter target")
	assert.Contains(t, view, "esc back")
}

func TestTargetModelValidatedTarget(t *testing.T) {
	m := NewTargetModel()
	_, err := m.ValidatedTarget()
	assert.Error(t, err)

	m.SetValue("https://example.com/app")
	target, err := m.ValidatedTarget()
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
}

func TestTargetModelEnterShowsError(t *testing.T) {
	m := NewTargetModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(TargetModel)
	assert.Contains(t, m.View(), "target is required")
}

func TestTargetModelInit(t *testing.T) {
	assert.NotNil(t, NewTargetModel().Init())
}
