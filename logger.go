package h2conn

import (
	"log"
	"os"
)

// Logger is the injectable sink for diagnostic output, set through
// ConnOpts.Logger and stored on Conn. It is deliberately narrow, in the
// texture of the teacher library's plain log.Println calls. No code path in
// the engine writes to it; errors reach callers through return values and
// Conn.LastErr only.
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger Logger = log.New(os.Stderr, "h2conn: ", log.LstdFlags)
