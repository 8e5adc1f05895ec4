package mcpserver

// NoteFormatContract describes the daily note format that LLM consumers
// should follow when reading or adding to notes.
const NoteFormatContract = `# Daily Note Format

One Markdown file per day at ` + "`" + `Progress/YYYY-MM-DD.md` + "`" + ` inside the vault.

## Template

` + "```" + `markdown
## Today's focus
- [ ]

## One thing that moves my main goal forward


## Progress log
-

## Notes / thoughts
` + "```" + `

## Supported Markdown

Only these line forms are understood by the editor:

- ` + "`" + `# ` + "`" + `, ` + "`" + `## ` + "`" + `, ` + "`" + `### ` + "`" + ` headings
- ` + "`" + `- [ ] task` + "`" + ` and ` + "`" + `- [x] done` + "`" + ` tasks
- ` + "`" + `- item` + "`" + ` bullets (` + "`" + `* ` + "`" + ` is read as a bullet too)
- anything else is a paragraph line

Blank lines are preserved. There is no nesting, no frontmatter and no inline styling.

## Rules

1. A day counts toward the streak when its note differs from the template.
2. Unchecked, non-empty tasks from the previous seven days are carried into
   a new note under "Today's focus".
3. Add tasks with the ` + "`" + `add_task` + "`" + ` tool rather than rewriting the note.
4. Dates are local calendar days in ISO-8601 (` + "`" + `2026-10-17` + "`" + `).
`
