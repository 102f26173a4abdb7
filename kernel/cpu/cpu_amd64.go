// Package cpu exposes the handful of privileged instructions that the boot
// path needs.
package cpu

// Halt disables interrupts and stops instruction execution.
func Halt()
