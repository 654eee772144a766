// Package window holds the fixed-capacity sliding window of recent readings.
//
// Buffer keeps the last Cap() readings in insertion order. Append adds at the
// end and evicts exactly one reading from the front once the window is over
// capacity. Snapshot returns a copy for rendering and export, and Series
// returns the same contents as parallel label/value slices for charting.
//
// The default capacity is 10. There is no clear or bulk-remove operation;
// the window starts empty at process start.
package window
