// Package logfields holds canonical slog attribute keys so every package logs
// the same names.
package logfields

import "log/slog"

const (
	KeyCollection = "collection"
	KeyDate       = "date"
	KeyOp         = "op"
	KeyVersion    = "version"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyError      = "error"
)

func Collection(c string) slog.Attr { return slog.String(KeyCollection, c) }
func Date(d string) slog.Attr       { return slog.String(KeyDate, d) }
func Op(op string) slog.Attr        { return slog.String(KeyOp, op) }
func Version(v string) slog.Attr    { return slog.String(KeyVersion, v) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr         { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
