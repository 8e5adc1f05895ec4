// Package daily holds the rules for dated progress notes: file naming,
// the blank template, carry-over of open tasks and "meaningful" days.
package daily

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/markdown"
)

// DateLayout is the note file stem format.
const DateLayout = "2006-01-02"

// DefaultDir is the vault sub-directory holding daily notes.
const DefaultDir = "Progress"

// CarryoverDays is how far back unchecked tasks are collected for a new note.
const CarryoverDays = 7

// Template is the content of a freshly created note.
const Template = `

## Today's focus
- [ ]

## One thing that moves my main goal forward


## Progress log
-

## Notes / thoughts
`

// emptyTask is the template line carried tasks are inserted before.
const emptyTask = "- [ ]"

// ParseDate parses a YYYY-MM-DD date in the local zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("daily: %q: %w", s, apperr.ErrInvalidDate)
	}
	return t, nil
}

// Format renders t as a note date.
func Format(t time.Time) string { return t.Format(DateLayout) }

// Day truncates t to local midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Path returns the vault-relative path of the note for date.
func Path(dir, date string) string {
	return filepath.Join(dir, date+".md")
}

// DateFromPath extracts the date from a note path, reporting false for
// files that are not daily notes.
func DateFromPath(p string) (string, bool) {
	stem, ok := strings.CutSuffix(filepath.Base(p), ".md")
	if !ok {
		return "", false
	}
	if _, err := time.Parse(DateLayout, stem); err != nil {
		return "", false
	}
	return stem, true
}

// Label is the single-letter weekday shown in the streak strip.
func Label(t time.Time) string {
	return t.Weekday().String()[:1]
}

// Meaningful reports whether content differs from the untouched template.
func Meaningful(content, template string) bool {
	return strings.TrimSpace(content) != strings.TrimSpace(template)
}

// Task is one checkbox line of a note.
type Task struct {
	Text    string
	Checked bool
}

// Tasks lists the task blocks of content in order.
func Tasks(content string) []Task {
	var out []Task
	for _, b := range markdown.ParseBlocks(content) {
		if b.Type() != block.TypeTask {
			continue
		}
		out = append(out, Task{Text: b.Content, Checked: b.Checked()})
	}
	return out
}

// OpenTasks returns the text of unchecked, non-empty tasks.
func OpenTasks(content string) []string {
	var out []string
	for _, t := range Tasks(content) {
		if !t.Checked && strings.TrimSpace(t.Text) != "" {
			out = append(out, t.Text)
		}
	}
	return out
}

// WithCarryover inserts tasks as unchecked lines before the first empty
// task of template. Without such a line they are appended.
func WithCarryover(template string, tasks []string) string {
	if len(tasks) == 0 {
		return template
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = emptyTask + " " + t
	}
	carried := strings.Join(lines, "\n")

	if strings.Contains(template, emptyTask) {
		return strings.Replace(template, emptyTask, carried+"\n"+emptyTask, 1)
	}
	if template != "" && !strings.HasSuffix(template, "\n") {
		template += "\n"
	}
	return template + carried + "\n"
}

// Dedupe keeps the first occurrence of every task text.
func Dedupe(tasks []string) []string {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0:0]
	for _, t := range tasks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
