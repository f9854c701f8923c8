// Package log provides structured logging for wireship.
//
// The [Logger] interface decouples the daemon from the logging backend;
// [ZerologAdapter] is the production implementation and [NoopLogger] keeps
// tests quiet. All daemon logging goes to stderr because stdout is reserved
// for the JSON command protocol.
package log
