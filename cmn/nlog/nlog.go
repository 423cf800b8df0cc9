// Package nlog is the process-wide leveled logger: buffered writes,
// call-site reporting, and an explicit Flush for shutdown paths.
package nlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevDbg severity = iota
	sevInfo
	sevWarn
	sevErr
)

const sevChars = "DIWE"

var (
	mw      sync.Mutex
	out     *bufio.Writer
	outFile *os.File

	toStderr     atomic.Bool
	alsoToStderr atomic.Bool
	debugOn      atomic.Bool

	title string
)

func init() {
	toStderr.Store(true) // sane default until SetOutput/SetLogDir is called
}

// SetOutput redirects subsequent log lines to w. Passing nil reverts to stderr.
func SetOutput(w *os.File) {
	mw.Lock()
	defer mw.Unlock()
	if out != nil {
		out.Flush()
	}
	if outFile != nil && outFile != os.Stderr {
		outFile.Close()
	}
	outFile = w
	if w == nil {
		toStderr.Store(true)
		out = nil
		return
	}
	toStderr.Store(false)
	out = bufio.NewWriterSize(w, 64*1024)
}

// SetLogDirRole opens (or creates) <dir>/<role>.log as the log sink.
func SetLogDirRole(dir, role string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, role+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	SetOutput(f)
	return nil
}

func SetTitle(s string) { title = s }

// SetDebug toggles whether Debug-level lines are emitted at all (cheap no-op check otherwise).
func SetDebug(on bool) { debugOn.Store(on) }
func DebugOn() bool    { return debugOn.Load() }

func AlsoToStderr(on bool) { alsoToStderr.Store(on) }

func log(sev severity, depth int, format string, args ...any) {
	if sev == sevDbg && !debugOn.Load() {
		return
	}
	line := render(sev, depth+1, format, args...)
	if toStderr.Load() || alsoToStderr.Load() || sev >= sevWarn {
		os.Stderr.WriteString(line)
	}
	if toStderr.Load() {
		return
	}
	mw.Lock()
	if out != nil {
		out.WriteString(line)
		if sev >= sevWarn {
			out.Flush()
		}
	}
	mw.Unlock()
}

func render(sev severity, depth int, format string, args ...any) string {
	var sb strings.Builder
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
	} else {
		fn, ln = "???", 0
	}
	sb.WriteByte(sevChars[sev])
	sb.WriteByte(' ')
	sb.WriteString(time.Now().Format("15:04:05.000000"))
	sb.WriteByte(' ')
	sb.WriteString(fn)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(ln))
	sb.WriteByte(' ')
	if format == "" {
		fmt.Fprintln(&sb, args...)
	} else {
		fmt.Fprintf(&sb, format, args...)
		if !strings.HasSuffix(format, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func Flush() {
	mw.Lock()
	defer mw.Unlock()
	if out != nil {
		out.Flush()
	}
	if outFile != nil {
		outFile.Sync()
	}
}
