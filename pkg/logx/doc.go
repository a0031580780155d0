// Package logx configures slotbot's structured logging.
//
// A small value type (logx.Logger) sits on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Level and sinks swappable at runtime (daemon config reload)
package logx
