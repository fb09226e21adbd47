// Package logx is a small wrapper (logx.Logger) on top of zerolog used by
// the layers that run below the slog service (storage, config). It keeps
// console output readable (short timestamp + short caller) and the zero
// value safe to use.
package logx

import (
	"io"
	"os"
)

func Stdout() io.Writer { return os.Stdout }
