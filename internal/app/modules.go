package app

import (
	"github.com/vk/p4dbgen/internal/registry"
	"github.com/vk/p4dbgen/internal/workload/lockmgr"
	"github.com/vk/p4dbgen/internal/workload/smallbank"
	"github.com/vk/p4dbgen/internal/workload/tpcc"
	"github.com/vk/p4dbgen/internal/workload/ycsb"
)

// coreModules is the definitive list of all workloads that are compiled
// into the p4dbgen binary.
var coreModules = []registry.Module{
	&lockmgr.Module{},
	&smallbank.Module{},
	&tpcc.Module{},
	&ycsb.Module{},
}
