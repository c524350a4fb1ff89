package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are the packages whose frames never count as the call
// site of a record. Both log on behalf of their callers.
var wrapperPackages = []string{
	"cbtrader/logger.",
	"cbtrader/internal/metrics.",
}

// callerHook points the reported caller at the code that asked for the
// record rather than at logrus or one of the wrappers around it.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !wrapperFrame(frame) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

// wrapperFrame reports whether frame belongs to logrus or a wrapper
// package. Test files are call sites even inside the wrapper packages.
func wrapperFrame(frame runtime.Frame) bool {
	if strings.Contains(frame.Function, "sirupsen/logrus") {
		return true
	}
	if strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	for _, pkg := range wrapperPackages {
		if strings.HasPrefix(frame.Function, pkg) {
			return true
		}
	}
	return false
}
