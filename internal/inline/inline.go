// Package inline recognizes Markdown-like trigger patterns typed into a
// paragraph block and reports the conversion they ask for.
package inline

import (
	"regexp"
	"strings"

	"github.com/starford/focusguard/internal/block"
)

// MenuTrigger is the content that opens the command menu.
const MenuTrigger = "/"

var (
	headingRe   = regexp.MustCompile(`^(#{1,3})\s(.*)`)
	taskPrefixR = regexp.MustCompile(`^-\s+\[\s*\]\s*`)
)

// Action tells the caller what a detected pattern requests.
type Action int

const (
	None Action = iota
	Convert
	OpenMenu
)

func (a Action) String() string {
	switch a {
	case Convert:
		return "convert"
	case OpenMenu:
		return "open-menu"
	default:
		return "none"
	}
}

// Result describes a detected trigger. For Convert, Kind and Content hold
// the new variant and the text left after the trigger is stripped.
type Result struct {
	Action  Action
	Kind    block.Kind
	Content string
}

// Detect checks text against the triggers in priority order; the first
// match wins. It must only be called for paragraph blocks: typed blocks
// are never converted a second time.
func Detect(text string) Result {
	if m := headingRe.FindStringSubmatch(text); m != nil {
		return Result{Action: Convert, Kind: block.Heading{Level: len(m[1])}, Content: m[2]}
	}
	if strings.HasPrefix(text, "- [ ] ") || strings.HasPrefix(text, "- [] ") {
		return Result{Action: Convert, Kind: block.Task{}, Content: taskPrefixR.ReplaceAllString(text, "")}
	}
	if rest, ok := strings.CutPrefix(text, "- "); ok && rest != "" {
		return Result{Action: Convert, Kind: block.Bullet{}, Content: rest}
	}
	if text == MenuTrigger {
		return Result{Action: OpenMenu}
	}
	return Result{Action: None}
}

// Diverged reports whether a menu bound to a block with this content
// must close.
func Diverged(text string) bool {
	return text != MenuTrigger
}
