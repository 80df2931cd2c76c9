package cli

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinIsTerminal is a test seam. The prompt is only printed for an
// interactive terminal, so piped command scripts produce clean output.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// splitCommand splits an input line into the command and its arguments.
// Arguments may be double-quoted to contain spaces.
func splitCommand(line string) (string, []string) {
	var (
		fields  []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				fields = append(fields, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		fields = append(fields, cur.String())
	}

	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
