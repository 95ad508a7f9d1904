package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/inspect"
)

func walk(t *testing.T, v binn.Value) *inspect.Node {
	t.Helper()
	data, err := binn.Encode(v)
	require.NoError(t, err)
	root, err := inspect.Walk(data, nil)
	require.NoError(t, err)
	return root
}

func doc(t *testing.T) *inspect.Node {
	return walk(t, binn.Object{
		{Key: "a", Value: binn.Uint(1)},
		{Key: "l", Value: binn.List{binn.String("x"), binn.String("y")}},
		{Key: "z", Value: binn.Null{}},
	})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestNewShowsRootChildren(t *testing.T) {
	m := New("doc", doc(t))
	require.Len(t, m.rows, 4)
	assert.Equal(t, "OBJECT", m.Selected().TagName)
	assert.Equal(t, "l", m.rows[2].node.Key)
	assert.Equal(t, 1, m.rows[2].depth)
}

func TestMoveAndToggle(t *testing.T) {
	m := New("doc", doc(t))

	m = press(t, m, "down", "down")
	assert.Equal(t, "l", m.Selected().Key)

	m = press(t, m, "enter")
	require.Len(t, m.rows, 6)
	m = press(t, m, "j")
	assert.Equal(t, `"x"`, m.Selected().Summary)
	assert.Equal(t, 2, m.rows[m.cursor].depth)

	// left on a leaf jumps to its parent, left again folds it.
	m = press(t, m, "left")
	assert.Equal(t, "l", m.Selected().Key)
	m = press(t, m, "left")
	assert.Len(t, m.rows, 4)

	m = press(t, m, "right")
	assert.Len(t, m.rows, 6)
	m = press(t, m, " ")
	assert.Len(t, m.rows, 4)

	// Leaves do not toggle.
	m = press(t, m, "down", "enter")
	assert.Equal(t, "z", m.Selected().Key)
	assert.Len(t, m.rows, 4)
}

func TestCursorBounds(t *testing.T) {
	m := New("doc", doc(t))
	m = press(t, m, "up")
	assert.Equal(t, 0, m.cursor)
	m = press(t, m, "G")
	assert.Equal(t, 3, m.cursor)
	m = press(t, m, "down")
	assert.Equal(t, 3, m.cursor)
	m = press(t, m, "g")
	assert.Equal(t, 0, m.cursor)

	// Folding the root keeps the cursor on a visible row.
	m = press(t, m, "G", "g", "enter")
	assert.Len(t, m.rows, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestQuit(t *testing.T) {
	m := New("doc", doc(t))
	for _, k := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}, {Type: tea.KeyEsc}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}

func TestScroll(t *testing.T) {
	items := make(binn.List, 20)
	for i := range items {
		items[i] = binn.Uint(uint64(i))
	}
	m := New("long", walk(t, items))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	m = next.(Model)

	for i := 0; i < 12; i++ {
		m = press(t, m, "down")
	}
	assert.Equal(t, 12, m.cursor)
	assert.Equal(t, 7, m.top)

	m = press(t, m, "g")
	assert.Equal(t, 0, m.top)
}

func TestView(t *testing.T) {
	m := New("doc", doc(t))
	assert.Equal(t, "Loading…", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	out := next.(Model).View()
	assert.Contains(t, out, "doc")
	assert.Contains(t, out, "OBJECT")
	assert.Contains(t, out, "a:")
	assert.Contains(t, out, "▸ ")
	assert.Contains(t, out, "offset 0x0")
	assert.Contains(t, out, "declared")
	assert.Equal(t, 1, strings.Count(out, "▾ "))
}

func TestViewFlagsSizeMismatch(t *testing.T) {
	root, err := inspect.Walk([]byte{0xE0, 0x03, 0x01, 0x00}, nil)
	require.NoError(t, err)
	m := New("legacy", root)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Contains(t, next.(Model).View(), "!")
}
