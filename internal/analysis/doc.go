// Package analysis characterizes recorded axis traces.
//
//   - [Summarize]: per-axis range, travel and peak speed
//   - [Moves]: segments of the trace where the carriage was moving
//   - [PathASCII]: top-down plot of the carriage path
//
// Speeds are finite differences between consecutive samples, so they are
// only as good as the sampling rate of the trace.
package analysis
