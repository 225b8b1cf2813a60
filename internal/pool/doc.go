// Package pool runs a named job over a list of inputs, each job in its own
// OS process.
//
// Overview
// The parent side (Pool) keeps a backlog of inputs and a bounded number of
// running worker processes. A worker is a re-execution of the current binary
// (Config.Worker, usually the hidden "_worker" command) which looks the job
// up in a Registry and runs it through Serve.
//
// Protocol of one job:
//
//	parent --input JSON--> worker stdin
//	worker stdout --{"output": ...} | {"error": "..."}--> parent result
//	worker stderr --slog JSON lines--> parent logger
//
// A worker which exits without writing its envelope is a scheduling error
// (ErrScheduling), a job which returned an error is a *JobError. Both are
// recorded in Result.Err and the pool keeps scheduling the rest of the
// backlog unless Config.FailFast is set.
//
// Modes:
//   - ModeDirect keeps Size workers running and starts a replacement from
//     the supervising goroutine whenever one exits.
//   - ModeSupervised runs Size goroutines, each owning one worker at a time.
//
// Both modes return the same results. The backlog, the results and the
// in-flight count are guarded by one mutex.
package pool
