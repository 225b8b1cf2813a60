// Package pipe runs external command line tools as child processes and pipes
// bytes through them.
//
// Overview
// A Runner carries the settings shared by all invocations (shell, console
// echo switch, logger). Run launches one command, feeds it Options.Input and
// drains its stdout and stderr into Options.Stdout and Options.Stderr until
// the process terminates. Available checks whether a command can be launched
// at all.
//
// Data flow of a single Run:
//
//	Options.Input --feed--> ToProcess --> child stdin
//	child stdout --drain--> FromProcess --> Options.Stdout (+ console echo)
//	child stderr --drain--> FromProcess --> canary check --> Options.Stderr
//
// feed and both drains are goroutines reporting to one select loop, so a
// child blocked on a full stdout pipe never stalls the writer, and a writer
// blocked on a full stdin pipe never stalls the drains.
//
// Invariants:
//   - One OS process group per Run, killed as a whole on canary match or
//     context cancellation.
//   - stdout and stderr are read to EOF before the exit status is collected.
//   - The bridge only sees whole lines, except for a final unterminated line
//     or a line longer than 64KiB.
//   - A non-zero exit code is returned in Status, never as an error.
//
// Errors: ErrLaunch (executable not found), ErrBrokenPipe (child closed stdin
// before all input was written, see BrokenPipeError), ErrRunaway (canary
// matched).
package pipe
