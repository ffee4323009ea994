// Package registry provides the central "glue" for the workload modules.
//
// The Registry maps the workload names used on the command line and in
// configuration files (e.g., "ycsb") to the compiled generators that emit
// their pipelines. Every workload package exposes a Module that registers
// its generator.
//
// During application startup, the registry is populated and then validated
// to ensure every registered generator accepts its own defaults, preventing
// a wide class of runtime errors.
package registry
