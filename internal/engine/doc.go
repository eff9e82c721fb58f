// Package engine executes apply jobs: a compiled pattern replayed against a
// target sheet.
//
// Job lifecycle:
//
//	queued -> running -> succeeded
//	                  -> failed   -> (Retry) queued
//	                  -> canceled
//	queued -> canceled
//
// Steps run one at a time in position order (records by seq, groups
// expanded inline, disabled steps skipped). Each step moves from pending to
// applied or failed. The first failure halts the job with CurrentStep on the
// failing position; later steps are not attempted. Retry resumes at that
// position and never re-applies a step already in the applied state.
//
// Only one job per sheet may be queued or running, because structural steps
// shift the indices later steps resolve against.
//
// Cancellation is cooperative: it is observed between steps, and a step
// already handed to the sheet collaborator runs to completion.
package engine
