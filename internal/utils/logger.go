package utils

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger writes level-prefixed key=value lines.
type Logger struct {
	l *log.Logger
}

func NewLogger() *Logger {
	return &Logger{l: log.New(os.Stdout, "", log.LstdFlags)}
}

func (lg *Logger) Info(msg string, kv ...any)  { lg.write("INFO", msg, kv) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.write("WARN", msg, kv) }
func (lg *Logger) Error(msg string, kv ...any) { lg.write("ERROR", msg, kv) }

func (lg *Logger) write(level, msg string, kv []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	lg.l.Println(b.String())
}
