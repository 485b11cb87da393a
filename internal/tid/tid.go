// Package tid returns the operating system identifier of the calling thread.
//
// Goroutines migrate between threads, so the value is only meaningful as a diagnostic hint on
// failure records; it is never used for correlation.
package tid

// Current returns the OS thread ID the calling goroutine is running on, or 0 if the platform
// does not expose one.
func Current() uint32 {
	return current()
}
