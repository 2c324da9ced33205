package stats

import "fmt"

// RangeError reports a request parameter outside its allowed range. It is
// returned before any query executes and names the violated constraint so the
// API layer can surface it verbatim.
type RangeError struct {
	Param  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}
