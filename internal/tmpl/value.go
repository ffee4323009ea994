package tmpl

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Seq is a lazy, restartable sequence of bindable values. Each element is
// rendered with Text and the results are joined with newlines.
type Seq = iter.Seq[any]

// Text renders a bound value to its canonical text.
func Text(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case Renderer:
		return v.Render()
	case cty.Value:
		return ctyText(v)
	case Seq:
		return joinSeq(v)
	case func(func(any) bool):
		return joinSeq(v)
	case []string:
		return strings.Join(v, "\n"), nil
	case []*Node:
		return joinSeq(func(yield func(any) bool) {
			for _, n := range v {
				if !yield(n) {
					return
				}
			}
		})
	case []any:
		return joinSeq(func(yield func(any) bool) {
			for _, e := range v {
				if !yield(e) {
					return
				}
			}
		})
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprint(v), nil
}

func joinSeq(seq func(func(any) bool)) (string, error) {
	var parts []string
	var err error
	seq(func(e any) bool {
		var s string
		s, err = Text(e)
		if err != nil {
			return false
		}
		parts = append(parts, s)
		return true
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// Range yields fn(i) for every i in [0, n). The sequence is evaluated each
// time it is rendered.
func Range(n int, fn func(i int) any) Seq {
	return func(yield func(any) bool) {
		for i := range n {
			if !yield(fn(i)) {
				return
			}
		}
	}
}

// Lines yields the given values in order.
func Lines(values ...any) Seq {
	return func(yield func(any) bool) {
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	}
}

// Concat yields the elements of each sequence in turn.
func Concat(seqs ...Seq) Seq {
	return func(yield func(any) bool) {
		for _, s := range seqs {
			for v := range s {
				if !yield(v) {
					return
				}
			}
		}
	}
}
