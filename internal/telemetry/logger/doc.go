// Package logger configures structured logging for memkv.
//
// Everything logs through log/slog. New builds a JSON or text handler whose
// level lives in a shared slog.LevelVar, so SetLevel takes effect on every
// logger derived from it (the config watcher uses this for live reload).
// Attributes whose key looks like a credential are redacted by the handler.
//
// Context helpers carry the per-connection logger and connection id.
package logger
