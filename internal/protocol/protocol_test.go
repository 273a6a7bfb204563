package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	p, err := Parse([]byte(`{
		"metadata": {"author": "lab"},
		"commands": [
			{"command": "home"},
			{"command": "move_to", "params": {"mount": "left", "point": {"x": 10, "y": 20, "z": 5}}}
		]
	}`))
	require.NoError(t, err)

	assert.False(t, p.Script)
	assert.Equal(t, "lab", p.Metadata["author"])
	require.Len(t, p.Commands, 2)
	assert.Equal(t, "home", p.Commands[0].Name)
	assert.Equal(t, "left", p.Commands[1].Params["mount"])
}

func TestParseFallsBackToScript(t *testing.T) {
	p, err := Parse([]byte(`
# prime
home x y
move_to left {"x": 10, "y": 20, "z": 5}
delay 0.5
disengage_axes ["x", "y"]
`))
	require.NoError(t, err)

	assert.True(t, p.Script)
	require.Len(t, p.Commands, 4)

	assert.Equal(t, Command{Name: "home", Args: []any{"x", "y"}, Line: 3}, p.Commands[0])
	assert.Equal(t, []any{"left", map[string]any{"x": 10.0, "y": 20.0, "z": 5.0}}, p.Commands[1].Args)
	assert.Equal(t, []any{0.5}, p.Commands[2].Args)
	assert.Equal(t, []any{[]any{"x", "y"}}, p.Commands[3].Args)
}

func TestParseScriptArguments(t *testing.T) {
	tests := []struct {
		line string
		want []any
	}{
		{"cmd", nil},
		{"cmd true false", []any{true, false}},
		{`cmd "two words" 3`, []any{"two words", 3.0}},
		{"cmd -1.5 left", []any{-1.5, "left"}},
		{"cmd\t{\"a\": [1, 2]}", []any{map[string]any{"a": []any{1.0, 2.0}}}},
		{"cmd\t\tleft \t 2", []any{"left", 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p, err := ParseScript([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, "cmd", p.Commands[0].Name)
			assert.Equal(t, tt.want, p.Commands[0].Args)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"commands": []}`))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse([]byte("# nothing here\n\n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse([]byte(`{"commands": [{"params": {}}]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"commands": "home"}`))
	assert.Error(t, err)

	_, err = Parse([]byte("home\nmove_to left {\"x\": 1"))
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Line)
}
