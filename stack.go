package domquery

import (
	"fmt"
	"runtime"
	"strings"
)

// modulePath marks frames that belong to this library.
const modulePath = "github.com/hazyhaar/domquery"

// Frame is one entry of a call stack.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line)
}

// CallerStack captures the stack of the calling goroutine. skip=0 starts at
// the caller of CallerStack.
func CallerStack(skip int) []Frame {
	return captureStack(skip + 1)
}

func captureStack(skip int) []Frame {
	pcs := make([]uintptr, 64)
	// +2 skips runtime.Callers and captureStack itself.
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		if !more {
			break
		}
	}
	return out
}

// IsInternalFrame is the default internal-frame predicate: library code
// outside test files, and the Go runtime.
func IsInternalFrame(f Frame) bool {
	if strings.HasPrefix(f.Function, "runtime.") {
		return true
	}
	if !strings.HasPrefix(f.Function, modulePath+".") && !strings.HasPrefix(f.Function, modulePath+"/") {
		return false
	}
	return !strings.HasSuffix(f.File, "_test.go")
}

// StackAttributor rewrites the stack of a *QueryError so it reads from the
// throw site to the public call site, without library plumbing in between.
type StackAttributor struct {
	// Internal reports frames to drop. Nil means IsInternalFrame.
	Internal func(Frame) bool
}

// Attribute merges caller into the stack of err when err is a *QueryError
// that has not been attributed yet. It returns a new error and leaves err
// untouched. Any other error is returned as is.
func (a StackAttributor) Attribute(err error, caller []Frame) error {
	qe, ok := err.(*QueryError)
	if !ok || qe.attributed {
		return err
	}

	internal := a.Internal
	if internal == nil {
		internal = IsInternalFrame
	}

	cp := *qe
	cp.stack = mergeFrames(qe.stack, caller, internal)
	cp.attributed = true
	return &cp
}

// mergeFrames concatenates thrown and caller, keeps the first occurrence of
// each frame, and drops internal frames.
func mergeFrames(thrown, caller []Frame, internal func(Frame) bool) []Frame {
	seen := make(map[Frame]bool, len(thrown)+len(caller))
	out := make([]Frame, 0, len(thrown)+len(caller))
	for _, list := range [][]Frame{thrown, caller} {
		for _, f := range list {
			if seen[f] {
				continue
			}
			seen[f] = true
			if internal(f) {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}
