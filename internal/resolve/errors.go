package resolve

import (
	"sort"
	"strings"
)

// ErrorList accumulates validation and resolution errors across every branch
// of a resolution, deduplicated by message. Resolution is all-or-nothing: a
// non-empty list aborts SQL generation entirely.
type ErrorList struct {
	msgs []string
	seen map[string]bool
}

// Add appends messages, dropping duplicates.
func (e *ErrorList) Add(msgs ...string) {
	if e.seen == nil {
		e.seen = make(map[string]bool)
	}
	for _, m := range msgs {
		if m == "" || e.seen[m] {
			continue
		}
		e.seen[m] = true
		e.msgs = append(e.msgs, m)
	}
}

// Empty reports whether no errors were recorded.
func (e *ErrorList) Empty() bool { return len(e.msgs) == 0 }

// Messages returns the deduplicated messages sorted for stable output.
func (e *ErrorList) Messages() []string {
	out := make([]string, len(e.msgs))
	copy(out, e.msgs)
	sort.Strings(out)
	return out
}

// Err returns the list as an error, or nil if it is empty.
func (e *ErrorList) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ErrorList) Error() string {
	msgs := e.Messages()
	if len(msgs) == 1 {
		return msgs[0]
	}
	return "multiple errors:\n  - " + strings.Join(msgs, "\n  - ")
}
