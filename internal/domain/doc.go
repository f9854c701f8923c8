// Package domain contains the core entities and value objects for wireship.
//
// This package represents the innermost layer. It has no dependencies on
// infrastructure concerns (serial ports, file system, logging) and contains
// only the wire format and its invariants.
//
// # Entities
//
//   - [Frame]: one decoded 64-byte telemetry record (sequence, timestamp,
//     sensor readings, FSM state, stored checksum)
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
//
// A Frame can only be obtained from a byte window whose magic constant
// matched; byte windows that fail the magic check never become Frames, they
// are counted as rejected bytes by the decoder.
package domain
