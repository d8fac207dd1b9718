// Package glossy implements the Glossy flooding protocol core: the
// slot/packet state machine, header codec and validator, relay-count-based
// time-reference recovery, retransmission-timeout fallback, and slot-length
// estimation described by Ferrari, Zimmerling, Thiele and Saukh ("Efficient
// Network Flooding and Time Synchronization with Glossy").
//
// This package owns none of the hardware: the radio and the high-resolution
// timer are consumed through the interfaces in internal/radio and
// internal/timer. A Controller drives exactly one flood at a time; all state
// mutation happens either from the caller's goroutine inside Start/Stop or
// from radio callback methods, both serialized by an internal mutex that
// stands in for the disabled-interrupts critical section of the original
// interrupt-driven implementation.
package glossy
