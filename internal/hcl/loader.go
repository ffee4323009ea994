package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/vk/p4dbgen/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file found under paths and merges their targets and
// scenarios into one model. Names must be unique per block kind across all
// files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := &config.Model{}
	targets := make(map[string]string)
	scenarios := make(map[string]string)
	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, t := range root.Targets {
			if prev, dup := targets[t.Name]; dup {
				return nil, fmt.Errorf("duplicate target '%s' in %s (first defined in %s)", t.Name, file, prev)
			}
			targets[t.Name] = file
			def, err := l.translateTarget(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Targets = append(model.Targets, def)
		}
		for _, s := range root.Scenarios {
			if prev, dup := scenarios[s.Name]; dup {
				return nil, fmt.Errorf("duplicate scenario '%s' in %s (first defined in %s)", s.Name, file, prev)
			}
			scenarios[s.Name] = file
			def, err := l.translateScenario(ctx, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Scenarios = append(model.Scenarios, def)
		}
	}

	logger.Debug("HCL loading complete.", "targets", len(model.Targets), "scenarios", len(model.Scenarios))
	return model, nil
}

// findAllHCLFiles returns a flat, de-duplicated list of the .hcl files named
// by or found under paths.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) != ".hcl" {
				return nil, fmt.Errorf("%s is not an .hcl file", path)
			}
			add(path)
			continue
		}

		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}
	return allFiles, nil
}
