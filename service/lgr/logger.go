package lgr

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// Logger is the process-wide structured logger. Everything in this repo logs
// through it so handlers and levels can be swapped in one place.
var Logger *slog.Logger

func init() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// Err wraps an error with a stack trace so the handler output carries where
// the error originated, not just its message.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", xerrors.New(err.Error()))
}
