// Package register models switch register arrays: fixed-size arrays of
// cells that are only read or written through atomic register actions.
package register

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned when an action addresses a cell outside
// the register.
var ErrIndexOutOfRange = errors.New("register index out of range")

// Action is the body of a register action. It receives the current cell
// value and returns the new cell value and the action's return value.
type Action[T any] func(cell T) (T, uint32)

// Register is a named array of cells. Actions on the same register never
// interleave.
type Register[T any] struct {
	name  string
	mu    sync.Mutex
	cells []T
}

// New creates a register with size cells, each set to init.
func New[T any](name string, size int, init T) *Register[T] {
	cells := make([]T, size)
	for i := range cells {
		cells[i] = init
	}
	return &Register[T]{name: name, cells: cells}
}

// Name returns the register name.
func (r *Register[T]) Name() string {
	return r.name
}

// Size returns the number of cells.
func (r *Register[T]) Size() int {
	return len(r.cells)
}

// Execute runs a on cell idx atomically and returns its return value.
func (r *Register[T]) Execute(idx int, a Action[T]) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx < 0 || idx >= len(r.cells) {
		return 0, fmt.Errorf("%s[%d]: %w", r.name, idx, ErrIndexOutOfRange)
	}
	var rv uint32
	r.cells[idx], rv = a(r.cells[idx])
	return rv, nil
}

// Load returns a copy of cell idx.
func (r *Register[T]) Load(idx int) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx < 0 || idx >= len(r.cells) {
		var zero T
		return zero, fmt.Errorf("%s[%d]: %w", r.name, idx, ErrIndexOutOfRange)
	}
	return r.cells[idx], nil
}
