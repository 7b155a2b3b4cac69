// Package trace records what the translator is doing so slow or stuck
// translations can be diagnosed.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	wavefront translate --trace=- --trace-level=phase shaders.sirpk
//
// # Architecture
//
//   - Session: builds the tracers for a Config and owns their outputs
//   - Nop: used when tracing is off
//   - StreamTracer: immediate write to a file or stderr
//   - RingTracer: circular buffer written at close, or only on failure
//     at LevelError
//   - MultiTracer: fans out to several tracers
//   - Heartbeat: periodic liveness events carrying a progress status
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only failure dumps
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: per-function events
//   - LevelDebug: everything including source blocks
//
// # Scopes
//
//   - ScopeDriver: module translation
//   - ScopePass: validate, lower, finalize
//   - ScopeFunction: one shader function
//   - ScopeBlock: one source block
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, session.Tracer)
//
//	span, ctx := trace.Start(ctx, trace.ScopeFunction, "fn:main")
//	defer span.End("")
package trace
