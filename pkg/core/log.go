package core

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// MemoryLog keeps the most recent log output so the bridge can serve it
// over HTTP without touching the process stdout.
var MemoryLog = newLogBuffer(64 * 1024)

var Logger zerolog.Logger

// InitLogger configures the global logger. Unknown level strings fall back
// to info.
func InitLogger(level string) zerolog.Logger {
	console := &zerolog.ConsoleWriter{Out: os.Stdout}
	console.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
	console.TimeFormat = "15:04:05.000"

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.MultiLevelWriter(console, MemoryLog)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	Logger = zerolog.New(writer).Level(lvl).With().Timestamp().Logger()

	return Logger
}

// logBuffer is a bounded byte ring. Writes never fail; old output is
// discarded once the buffer is full.
type logBuffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func newLogBuffer(size int) *logBuffer {
	return &logBuffer{size: size}
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	if overflow := len(b.buf) - b.size; overflow > 0 {
		b.buf = b.buf[overflow:]
	}
	b.mu.Unlock()
	return len(p), nil
}

func (b *logBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	snapshot := make([]byte, len(b.buf))
	copy(snapshot, b.buf)
	b.mu.Unlock()

	n, err := w.Write(snapshot)
	return int64(n), err
}

func (b *logBuffer) Reset() {
	b.mu.Lock()
	b.buf = b.buf[:0]
	b.mu.Unlock()
}
