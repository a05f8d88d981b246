// Package preview turns the possibly-truncated JSON text of an itinerary that
// is still being generated into a renderable partial view.
//
// Preview is a pure function of its input. Consumers that want the previous
// view to survive a chunk that cannot be repaired use a Tracker.
package preview

import (
	"encoding/json"
	"strings"

	"github.com/tripplanner/backend/internal/domain"
)

// Snapshot is a best-effort view of a partial itinerary document.
type Snapshot struct {
	Title string       `json:"title"`
	Days  []domain.Day `json:"days"`
	// Complete is true when the whole text parsed without repair.
	Complete bool `json:"complete"`
	// DaysParsed is true when Days came from a successful parse. A title-only
	// snapshot has an empty, non-nil Days and DaysParsed false.
	DaysParsed bool `json:"-"`
}

type document struct {
	Title string       `json:"title"`
	Days  []domain.Day `json:"days"`
}

// Preview derives a snapshot from text. It never panics and returns ok=false
// only when nothing at all can be derived yet, in which case the caller shows
// a placeholder.
//
// A full parse is tried first. Otherwise one linear scan records the open
// container stack and the first top-level "title" string, the text is closed
// by appending the missing closers in stack order, and the result is parsed
// once. Text that ends inside a string or after a key with no value is not
// repaired; the snapshot then carries the title alone.
func Preview(text string) (Snapshot, bool) {
	if strings.TrimSpace(text) == "" {
		return Snapshot{}, false
	}

	var doc document
	if err := json.Unmarshal([]byte(text), &doc); err == nil {
		return Snapshot{Title: doc.Title, Days: nonNil(doc.Days), Complete: true, DaysParsed: true}, true
	}

	st := scan(text)
	if repaired, ok := st.repair(text); ok {
		var doc document
		if err := json.Unmarshal([]byte(repaired), &doc); err == nil {
			title := doc.Title
			if title == "" {
				title = st.title
			}
			if title == "" && len(doc.Days) == 0 {
				return Snapshot{}, false
			}
			return Snapshot{Title: title, Days: nonNil(doc.Days), DaysParsed: true}, true
		}
	}

	if st.hasTitle {
		return Snapshot{Title: st.title, Days: []domain.Day{}}, true
	}
	return Snapshot{}, false
}

func nonNil(days []domain.Day) []domain.Day {
	if days == nil {
		return []domain.Day{}
	}
	return days
}

type frame struct {
	open      byte
	expectKey bool
}

type scanState struct {
	stack    []frame
	inString bool
	escape   bool
	// dangling is set from the end of an object key until its value starts.
	dangling bool
	// broken marks a closer that does not match the open container.
	broken bool

	strStart     int
	readingKey   bool
	titleKey     bool
	readingTitle bool

	title    string
	hasTitle bool
}

func scan(text string) scanState {
	var st scanState
	for i := 0; i < len(text); i++ {
		c := text[i]
		if st.inString {
			switch {
			case st.escape:
				st.escape = false
			case c == '\\':
				st.escape = true
			case c == '"':
				st.inString = false
				st.closeString(text[st.strStart : i+1])
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r', ':':
		case '"':
			st.inString = true
			st.strStart = i
			if top := st.top(); top != nil && top.open == '{' && top.expectKey {
				top.expectKey = false
				st.readingKey = true
			} else {
				st.readingTitle = st.titleKey && !st.hasTitle
				st.startValue()
			}
		case ',':
			if top := st.top(); top != nil && top.open == '{' {
				top.expectKey = true
			}
		case '{', '[':
			st.startValue()
			st.stack = append(st.stack, frame{open: c, expectKey: c == '{'})
		case '}', ']':
			top := st.top()
			if top == nil || closer(top.open) != c {
				st.broken = true
				continue
			}
			st.stack = st.stack[:len(st.stack)-1]
		default:
			st.startValue()
		}
	}
	return st
}

func (st *scanState) top() *frame {
	if len(st.stack) == 0 {
		return nil
	}
	return &st.stack[len(st.stack)-1]
}

func (st *scanState) startValue() {
	st.dangling = false
	st.titleKey = false
}

func (st *scanState) closeString(lit string) {
	if st.readingKey {
		st.readingKey = false
		st.dangling = true
		st.titleKey = len(st.stack) == 1 && unquote(lit) == "title"
		return
	}
	if st.readingTitle {
		st.readingTitle = false
		st.title = unquote(lit)
		st.hasTitle = true
	}
}

// repair closes every open container. It refuses text that ends inside a
// string, after a dangling key, or after a mismatched closer.
func (st scanState) repair(text string) (string, bool) {
	if st.inString || st.dangling || st.broken || len(st.stack) == 0 {
		return "", false
	}
	body := strings.TrimRight(text, " \t\r\n")
	body = strings.TrimSuffix(body, ",")

	var b strings.Builder
	b.Grow(len(body) + len(st.stack))
	b.WriteString(body)
	for i := len(st.stack) - 1; i >= 0; i-- {
		b.WriteByte(closer(st.stack[i].open))
	}
	return b.String(), true
}

func closer(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func unquote(lit string) string {
	var s string
	if err := json.Unmarshal([]byte(lit), &s); err != nil {
		return strings.Trim(lit, `"`)
	}
	return s
}
