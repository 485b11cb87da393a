// Package etw provides an [event.Writer] that writes events as ETW TraceLogging events.
//
// Event level, keyword, opcode, and (related) activity ID are written as ETW event metadata, and
// the event fields as the payload. ETW prefers the first definition of a field, which matches
// [event.Event] semantics.
//
// The writer is only available on Windows. Field conversion is shared with other platforms so
// that it can be tested everywhere.
package etw
