// logging prefixes stdlib log lines with coloured level tags.
package logging

import (
	"io"
	"log"

	"github.com/logrusorgru/aurora"
)

type Logger struct {
	*log.Logger
	au     aurora.Aurora
	colors bool
	debug  bool
}

// New returns a logger writing to w. Colours should be off when w is not a terminal.
func New(w io.Writer, prefix string, colors, debug bool) *Logger {
	return &Logger{
		Logger: log.New(w, prefix, log.LstdFlags),
		au:     aurora.NewAurora(colors),
		colors: colors,
		debug:  debug,
	}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return New(io.Discard, "", false, false)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Printf("%s "+format, append([]interface{}{l.au.Green("[INFO]")}, args...)...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Printf("%s "+format, append([]interface{}{l.au.Red("[ERROR]")}, args...)...)
}

// Debugf logs only when debug output was requested.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.Printf("%s "+format, append([]interface{}{l.au.Cyan("[DEBUG]")}, args...)...)
}

// DebugEnabled reports whether Debugf writes anything.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Colors reports whether output is coloured, for callers rendering their own dumps.
func (l *Logger) Colors() bool {
	return l.colors
}

// Writer exposes the destination for multi-line debug dumps.
func (l *Logger) Writer() io.Writer {
	return l.Logger.Writer()
}
