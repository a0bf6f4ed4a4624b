package errors

import (
	"fmt"
	"runtime"
	"strings"
)

type stack []uintptr

// callers records the stack of the function calling a Reporter, skipping the
// reporting machinery itself.
func callers() stack {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

func (s stack) fullStack() []string {
	frames := runtime.CallersFrames(s)
	lines := make([]string, 0, len(s))
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			lines = append(lines, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return lines
}

// origin picks the frame used as the rate limiting key: the first frame outside this
// package, i.e. the code that produced the error.
func origin(stacks []string) string {
	for _, s := range stacks {
		if !strings.Contains(s, "/pkg/errors.") {
			return s
		}
	}
	if len(stacks) > 0 {
		return stacks[len(stacks)-1]
	}
	return ""
}
