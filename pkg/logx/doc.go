// Package logx wraps zerolog behind a small structured-logging facade.
//
// It supports three sinks: console, append-file, and a rate-limited
// Telegram forwarder for warnings and errors. Sink configuration can be
// swapped at runtime via Service.Apply.
package logx
