// Package logx provides a simple way of logging with different levels and
// optional structured fields. Time/date are not logged on purpose: in most
// deployments systemd or the container runtime already timestamps stdout.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package logx

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrorWriter io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]"
	InfoPrefix  string = "<6>[INFO]"
	WarnPrefix  string = "<4>[WARNING]"
	ErrPrefix   string = "<3>[ERROR]"
	FatalPrefix string = "<3>[FATAL]"
)

var mu sync.Mutex

func init() {
	if lvl, ok := os.LookupEnv("LOGLEVEL"); ok {
		SetLevel(lvl)
	}
}

// SetLevel silences writers below the given level ("debug", "info", "warn", "error"/"err"/"fatal").
func SetLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	switch lvl {
	case "err", "error", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// Nothing to do...
	default:
		Warnf("logx: environment variable LOGLEVEL has invalid value %#v", lvl)
	}
}

func Debug(v ...interface{}) {
	if DebugWriter != io.Discard {
		v = append([]interface{}{DebugPrefix}, v...)
		fmt.Fprintln(DebugWriter, v...)
	}
}

func Debugf(format string, a ...interface{}) {
	if DebugWriter != io.Discard {
		fmt.Fprintln(DebugWriter, DebugPrefix, fmt.Sprintf(format, a...))
	}
}

func Info(v ...interface{}) {
	if InfoWriter != io.Discard {
		v = append([]interface{}{InfoPrefix}, v...)
		fmt.Fprintln(InfoWriter, v...)
	}
}

func Infof(format string, a ...interface{}) {
	if InfoWriter != io.Discard {
		fmt.Fprintln(InfoWriter, InfoPrefix, fmt.Sprintf(format, a...))
	}
}

func Warn(v ...interface{}) {
	if WarnWriter != io.Discard {
		v = append([]interface{}{WarnPrefix}, v...)
		fmt.Fprintln(WarnWriter, v...)
	}
}

func Warnf(format string, a ...interface{}) {
	if WarnWriter != io.Discard {
		fmt.Fprintln(WarnWriter, WarnPrefix, fmt.Sprintf(format, a...))
	}
}

func Error(v ...interface{}) {
	v = append([]interface{}{ErrPrefix}, v...)
	fmt.Fprintln(ErrorWriter, v...)
}

func Errorf(format string, a ...interface{}) {
	fmt.Fprintln(ErrorWriter, ErrPrefix, fmt.Sprintf(format, a...))
}

func Fatal(v ...interface{}) {
	v = append([]interface{}{FatalPrefix}, v...)
	fmt.Fprintln(ErrorWriter, v...)
	os.Exit(1)
}

func Fatalf(format string, a ...interface{}) {
	fmt.Fprintln(ErrorWriter, FatalPrefix, fmt.Sprintf(format, a...))
	os.Exit(1)
}

// Fields is a set of structured key/value pairs attached to a single log line,
// used where a message needs machine-parseable context (trace_id, tenant,
// stream) rather than being folded into the message text.
type Fields map[string]interface{}

// WithFields renders fields in stable (sorted-key) order so log output is
// diffable across runs, and formats the message with its fields appended.
func WithFields(fields Fields) *Entry {
	return &Entry{fields: fields}
}

type Entry struct {
	fields Fields
}

func (e *Entry) render(msg string) string {
	if len(e.fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.fields[k])
	}
	return sb.String()
}

func (e *Entry) Info(msg string)  { Info(e.render(msg)) }
func (e *Entry) Warn(msg string)  { Warn(e.render(msg)) }
func (e *Entry) Error(msg string) { Error(e.render(msg)) }
func (e *Entry) Debug(msg string) { Debug(e.render(msg)) }
