package qlconsole

import (
	"github.com/qlconsole/qlconsole-go/internal/parser"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

// ClassifyAndExtract classifies one block of console output with the
// built-in rule table and returns its typed result. hint names the command
// that produced the block; pass event.Ignored when there is none.
//
// Blocks that match no rule, or whose fields cannot be typed, yield a result
// of kind event.Ignored. ClassifyAndExtract never panics on any input.
func ClassifyAndExtract(text string, hint event.Kind) event.Result {
	return parser.ClassifyAndExtract(pattern.MustDefault(), text, hint)
}
