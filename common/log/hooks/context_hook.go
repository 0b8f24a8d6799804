// Package hooks holds logrus hooks shared by the planner binaries.
package hooks

import (
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
)

type contextHook struct {
}

// NewContextHook returns a hook that tags every entry with the file:line
// of the planner code that logged it.
func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	if loc := callerLocation(string(debug.Stack())); loc != "" {
		entry.Data["file:line"] = loc
	}
	return nil
}

// callerLocation walks a debug.Stack() dump and returns the path of the
// outermost frame below the hook, trimmed to the module-relative part.
func callerLocation(stack string) string {
	lines := strings.Split(stack, "\n")
	foundHook := false
	incr := 1
	loc := ""
	for i := 0; i < len(lines); i = i + incr {
		if strings.Contains(lines[i], "context_hook.go:") {
			foundHook = true
			incr = 2
			continue
		}
		if !foundHook {
			continue
		}
		ctx := strings.Split(lines[i], "splitplan/")
		loc = strings.TrimSpace(ctx[len(ctx)-1])
	}
	return loc
}
