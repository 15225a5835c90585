package qlconsole

import "github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"

// compiledFilter decides which result kinds the watcher emits.
type compiledFilter struct {
	include map[event.Kind]struct{}
	exclude map[event.Kind]struct{}
}

func newCompiledFilter(include, exclude []event.Kind) *compiledFilter {
	f := &compiledFilter{}
	if len(include) > 0 {
		f.include = kindSet(include)
	}
	if len(exclude) > 0 {
		f.exclude = kindSet(exclude)
	}
	return f
}

func kindSet(kinds []event.Kind) map[event.Kind]struct{} {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[event.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		m[k] = struct{}{}
	}
	return m
}

// Allows reports whether results of kind k pass the filter.
// Exclude takes precedence over include; a nil filter allows everything.
func (f *compiledFilter) Allows(k event.Kind) bool {
	if f == nil {
		return true
	}
	if _, ok := f.exclude[k]; ok {
		return false
	}
	if f.include != nil {
		_, ok := f.include[k]
		return ok
	}
	return true
}
