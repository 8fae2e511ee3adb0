// Package dispatch plans and executes the invocation matrix for a sample.
//
// The dispatcher builds one invocation per channel x correction-level
// combination (the level list depends on input type), records the plan as a
// run in the ledger, then drains it serially: one external tool subprocess at
// a time, in FIFO order.
//
// Key behavior:
//   - Serial FIFO execution (the -j<N> flag forwarded to the tool configures
//     that tool's internal parallelism; the dispatcher itself never runs two
//     invocations at once)
//   - Optional per-invocation timeout with SIGTERM → 5s grace → SIGKILL
//   - Stderr capture (capped at 64KB); tool stdout passes through
//   - on_error policy: "halt" skips the rest of the run after the first
//     failure, "continue" executes every combination regardless
//   - Successful suffixes recorded in analysis state for --skip-done
//
// The dispatcher performs no retries and defines no error taxonomy of its
// own; tool exit codes are recorded as-is and surface in the run summary.
package dispatch
