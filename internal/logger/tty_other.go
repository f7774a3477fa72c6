//go:build !linux

package logger

import "io"

// IsTerminal is always false off Linux; output stays uncoloured.
func IsTerminal(io.Writer) bool { return false }
