package evidence

import (
	"fmt"
	"sort"
	"strings"
)

// Topic is a named, serialized slice of evidence.
type Topic struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Records   int    `json:"records"`
	Promoted  bool   `json:"promoted,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	records []any
}

// Bundle is the bounded context handed to answer generation.
type Bundle struct {
	Brief   string   `json:"brief,omitempty"`
	Topics  []Topic  `json:"topics"`
	Dropped []string `json:"dropped,omitempty"`
	// Fallback maps a year to whether general knowledge may supplement the
	// evidence for it. Year 0 covers claims without a resolvable year.
	Fallback   map[int]bool `json:"fallback,omitempty"`
	Simplified []string     `json:"simplified,omitempty"`
}

// Truncated reports whether any topic was dropped by a size cap.
func (x *Bundle) Truncated() bool {
	return len(x.Dropped) > 0
}

// IsEmpty reports whether the bundle carries no evidence at all.
func (x *Bundle) IsEmpty() bool {
	if x.Brief != "" {
		return false
	}
	for _, t := range x.Topics {
		if t.Records > 0 {
			return false
		}
	}
	return true
}

// Has reports whether a topic with records is included.
func (x *Bundle) Has(name string) bool {
	for _, t := range x.Topics {
		if t.Name == name && t.Records > 0 {
			return true
		}
	}
	return false
}

// TopicNames lists the included topic names in bundle order.
func (x *Bundle) TopicNames() []string {
	names := make([]string, 0, len(x.Topics))
	for _, t := range x.Topics {
		names = append(names, t.Name)
	}
	return names
}

// FallbackAllowed reports whether knowledge fallback covers year.
func (x *Bundle) FallbackAllowed(year int) bool {
	if x.Fallback == nil {
		return false
	}
	return x.Fallback[year] || x.Fallback[0]
}

// FallbackYears returns the years with fallback allowed, ascending.
func (x *Bundle) FallbackYears() []int {
	var years []int
	for y, ok := range x.Fallback {
		if ok && y != 0 {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// Render formats the bundle for a prompt.
func (x *Bundle) Render() string {
	var b strings.Builder
	if x.Brief != "" {
		b.WriteString("## analysis_brief\n")
		b.WriteString(x.Brief)
		b.WriteString("\n\n")
	}
	for _, t := range x.Topics {
		fmt.Fprintf(&b, "## %s\n%s\n", t.Name, t.Content)
		if t.Truncated {
			b.WriteString("(older records omitted)\n")
		}
		b.WriteString("\n")
	}
	if len(x.Simplified) > 0 {
		fmt.Fprintf(&b, "[reduced detail for: %s]\n", strings.Join(x.Simplified, ", "))
	}
	if x.Truncated() {
		fmt.Fprintf(&b, "[evidence truncated: %d topic(s) omitted: %s]\n", len(x.Dropped), strings.Join(x.Dropped, ", "))
	}
	return b.String()
}
