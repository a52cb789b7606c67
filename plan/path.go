package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brimdata/arbor/value"
)

// splitPath separates the branch part of an expression from its trailing
// selection.  The selection starts at the first bracket that is not a
// plain "[]" or at an "@size" suffix; everything before it is resolved
// against the tree, which also consumes "[]" and ".member" parts it cannot
// match to a branch.
func splitPath(path string) (string, string) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "[]")
	cut := len(path)
	for k := 0; k < len(path); k++ {
		switch path[k] {
		case '[':
			if k+1 < len(path) && path[k+1] == ']' {
				k++
				continue
			}
			cut = k
		case '@':
			cut = k
		default:
			continue
		}
		break
	}
	return path[:cut], path[cut:]
}

// parseSteps parses a selection such as "[].fX[$last$]" or "@size".
func parseSteps(sel string) ([]value.Step, error) {
	var steps []value.Step
	for len(sel) > 0 {
		switch sel[0] {
		case '[':
			end := strings.IndexByte(sel, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrSyntax, sel)
			}
			step, err := parseIndex(sel[1:end])
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
			sel = sel[end+1:]
		case '.', '>':
			sel = strings.TrimLeft(sel[1:], ">")
			end := strings.IndexAny(sel, ".[@>")
			if end < 0 {
				end = len(sel)
			}
			if end == 0 {
				continue
			}
			steps = append(steps, value.Step{Kind: value.StepMember, Name: sel[:end]})
			sel = sel[end:]
		case '@':
			if !strings.HasPrefix(sel, "@size") {
				return nil, fmt.Errorf("%w: unknown accessor %q", ErrSyntax, sel)
			}
			steps = append(steps, value.Step{Kind: value.StepSize})
			sel = sel[len("@size"):]
		case '-':
			// The second half of "->".
			sel = sel[1:]
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, sel)
		}
	}
	return steps, nil
}

func parseIndex(s string) (value.Step, error) {
	switch strings.TrimSpace(s) {
	case "", "$all$":
		return value.Step{Kind: value.StepAll}, nil
	case "$first$":
		return value.Step{Kind: value.StepFirst}, nil
	case "$last$":
		return value.Step{Kind: value.StepLast}, nil
	case "$size$":
		return value.Step{Kind: value.StepSize}, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return value.Step{}, fmt.Errorf("%w: bad index %q", ErrSyntax, s)
	}
	return value.Step{Kind: value.StepIndex, Index: n}, nil
}
