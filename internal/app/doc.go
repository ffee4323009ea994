// Package app contains the core application logic. It owns the logger and
// the workload registry and runs one of three modes: render a single
// workload, render every target of an HCL configuration concurrently, or
// run the scenarios of an HCL configuration through the pipeline model.
// It is decoupled from any specific entrypoint like a CLI.
package app
