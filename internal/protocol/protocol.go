// Package protocol parses protocol files and runs them through a bridge.
//
// A protocol is either JSON:
//
//	{"commands": [
//		{"command": "home"},
//		{"command": "move_to", "params": {"mount": "left", "point": {"x": 10, "y": 20, "z": 5}}}
//	]}
//
// or, when the file is not JSON, a line script with one command per line
// and whitespace-separated arguments. Arguments that parse as JSON are
// decoded, anything else is taken as a string:
//
//	# prime the left pipette
//	home
//	move_to left {"x": 10, "y": 20, "z": 5}
//	delay 0.5
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmpty = errors.New("protocol: no commands")

// Command is one step of a protocol.
type Command struct {
	Name   string         `json:"command"`
	Params map[string]any `json:"params,omitempty"`
	// Args are positional and take precedence over Params.
	Args []any `json:"args,omitempty"`
	// Line is the script line the command came from, zero for JSON.
	Line int `json:"-"`
}

// Protocol is a parsed protocol file.
type Protocol struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Commands []Command      `json:"commands"`
	// Script reports that the protocol was parsed as a line script.
	Script bool `json:"-"`
}

// SyntaxError reports a malformed script line.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("protocol: line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse reads a protocol, trying JSON first and falling back to a line
// script when the contents are not valid JSON.
func Parse(data []byte) (*Protocol, error) {
	if !json.Valid(data) {
		return ParseScript(data)
	}

	var p Protocol
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	if len(p.Commands) == 0 {
		return nil, ErrEmpty
	}
	for i, c := range p.Commands {
		if c.Name == "" {
			return nil, fmt.Errorf("protocol: command %d has no name", i)
		}
	}
	return &p, nil
}

// ParseScript parses a line script. Blank lines and lines starting with #
// are skipped.
func ParseScript(data []byte) (*Protocol, error) {
	p := &Protocol{Script: true}
	sc := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := firstWord(line)
		args, err := parseArgs(line[len(name):])
		if err != nil {
			return nil, &SyntaxError{Line: n, Err: err}
		}
		p.Commands = append(p.Commands, Command{Name: name, Args: args, Line: n})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("protocol: read script: %w", err)
	}
	if len(p.Commands) == 0 {
		return nil, ErrEmpty
	}
	return p, nil
}

func parseArgs(s string) ([]any, error) {
	var args []any
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return args, nil
		}

		switch s[0] {
		case '{', '[', '"':
			dec := json.NewDecoder(strings.NewReader(s))
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("bad argument %q: %w", firstWord(s), err)
			}
			args = append(args, v)
			s = s[dec.InputOffset():]
			continue
		}

		word := firstWord(s)
		s = s[len(word):]
		var v any
		if err := json.Unmarshal([]byte(word), &v); err == nil {
			args = append(args, v)
		} else {
			args = append(args, word)
		}
	}
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
