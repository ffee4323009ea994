// This file contains the logic for translating the decoded HCL schema structs
// into the format-agnostic configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted hcl.Expression fields with a zero-width
// placeholder, so only a non-empty source range counts.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

func translateParams(kind, name string, numRegs, numInstr, regSize int, maxRecircs int64) (config.Params, error) {
	for attr, v := range map[string]int64{
		"num_regs":    int64(numRegs),
		"num_instr":   int64(numInstr),
		"reg_size":    int64(regSize),
		"max_recircs": maxRecircs,
	} {
		if v < 0 {
			return config.Params{}, fmt.Errorf("%s '%s': %s must not be negative, got %d", kind, name, attr, v)
		}
	}
	if maxRecircs > math.MaxUint32 {
		return config.Params{}, fmt.Errorf("%s '%s': max_recircs %d does not fit 32 bits", kind, name, maxRecircs)
	}
	return config.Params{
		NumRegs:    numRegs,
		NumInstr:   numInstr,
		RegSize:    regSize,
		MaxRecircs: uint32(maxRecircs),
	}, nil
}

// translateTarget converts the HCL-specific target schema into the agnostic
// model.
func (l *Loader) translateTarget(ctx context.Context, t *Target) (*config.Target, error) {
	ctxlog.FromContext(ctx).Debug("Translating HCL target.", "target", t.Name, "workload", t.Workload)

	params, err := translateParams("target", t.Name, t.NumRegs, t.NumInstr, t.RegSize, t.MaxRecircs)
	if err != nil {
		return nil, err
	}
	return &config.Target{
		Name:     t.Name,
		Workload: t.Workload,
		Output:   t.Output,
		Params:   params,
	}, nil
}

// translateScenario converts the HCL-specific scenario schema into the
// agnostic model.
func (l *Loader) translateScenario(ctx context.Context, s *Scenario) (*config.Scenario, error) {
	logger := ctxlog.FromContext(ctx).With("scenario", s.Name)
	logger.Debug("Translating HCL scenario.", "workload", s.Workload, "txns", len(s.Txns), "requests", len(s.Requests))

	params, err := translateParams("scenario", s.Name, s.NumRegs, s.NumInstr, s.RegSize, s.MaxRecircs)
	if err != nil {
		return nil, err
	}
	if s.RecircLatency < 0 {
		return nil, fmt.Errorf("scenario '%s': recirc_latency must not be negative", s.Name)
	}

	out := &config.Scenario{
		Name:          s.Name,
		Workload:      s.Workload,
		Params:        params,
		RecircLatency: s.RecircLatency,
	}

	for _, txn := range s.Txns {
		if txn.At < 0 {
			return nil, fmt.Errorf("scenario '%s', txn '%s': at must not be negative", s.Name, txn.Name)
		}
		spec := &config.TxnSpec{
			Name:      txn.Name,
			At:        txn.At,
			Multipass: txn.Multipass,
		}
		if isExprDefined(txn.Locks) {
			logger.Debug("Explicit lock halves given.", "txn", txn.Name)
			locks, err := translateLocks(txn.Locks)
			if err != nil {
				return nil, fmt.Errorf("scenario '%s', txn '%s': %w", s.Name, txn.Name, err)
			}
			spec.Locks = locks
		}
		for _, in := range txn.Instrs {
			spec.Instrs = append(spec.Instrs, &config.InstrSpec{
				Op:   in.Op,
				Reg:  in.Reg,
				Key:  in.Key,
				Key2: in.Key2,
				Data: in.Data,
				Stop: in.Stop,
			})
		}
		out.Txns = append(out.Txns, spec)
	}

	for _, req := range s.Requests {
		out.Requests = append(out.Requests, &config.RequestSpec{
			Name:   req.Name,
			Op:     req.Op,
			Mode:   req.Mode,
			Key:    req.Key,
			Values: req.Values,
		})
	}
	return out, nil
}

// translateLocks evaluates a `locks = { left = 1, right = 0 }` object.
// Omitted halves are zero.
func translateLocks(expr hcl.Expression) (*config.LockSpec, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid locks: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("invalid locks: expected an object with left and right, got %s", val.Type().FriendlyName())
	}

	spec := &config.LockSpec{}
	for k, v := range val.AsValueMap() {
		var dst *uint8
		switch k {
		case "left":
			dst = &spec.Left
		case "right":
			dst = &spec.Right
		default:
			return nil, fmt.Errorf("invalid locks: unsupported attribute %q", k)
		}
		num, err := convert.Convert(v, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("invalid locks.%s: %w", k, err)
		}
		if err := gocty.FromCtyValue(num, dst); err != nil {
			return nil, fmt.Errorf("invalid locks.%s: %w", k, err)
		}
		if *dst > 1 {
			return nil, fmt.Errorf("invalid locks.%s: must be 0 or 1, got %d", k, *dst)
		}
	}
	return spec, nil
}
