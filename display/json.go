package display

import (
	"encoding/json"
	"os"

	"golang.org/x/term"
)

// MarshalJSON marshals JSON with pretty formatting on a terminal and
// compact formatting when stdout is piped
func MarshalJSON(v interface{}) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
