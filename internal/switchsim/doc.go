// Package switchsim is an executable model of the generated pipelines. It
// parses a transaction packet the way the generated parser does, runs the
// locking state machine from package protocol, applies the workload's
// register actions and schedules recirculated packets ahead of fresh
// arrivals.
//
// The model is single-threaded like the hardware pipeline: one packet
// traverses ingress per tick and every traversal runs to completion.
package switchsim
