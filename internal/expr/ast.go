package expr

import (
	"fmt"
	"math"
)

type node interface {
	eval(lookup Lookup) (float64, error)
	vars(seen map[string]struct{}, out []string) []string
}

type numberNode struct{ v float64 }

func (n numberNode) eval(Lookup) (float64, error) { return n.v, nil }

func (n numberNode) vars(_ map[string]struct{}, out []string) []string { return out }

type varNode struct{ name string }

func (n varNode) eval(lookup Lookup) (float64, error) {
	if lookup == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, n.name)
	}
	v, err := lookup(n.name)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (n varNode) vars(seen map[string]struct{}, out []string) []string {
	if _, ok := seen[n.name]; ok {
		return out
	}
	seen[n.name] = struct{}{}
	return append(out, n.name)
}

type negNode struct{ x node }

func (n negNode) eval(lookup Lookup) (float64, error) {
	v, err := n.x.eval(lookup)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n negNode) vars(seen map[string]struct{}, out []string) []string {
	return n.x.vars(seen, out)
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(lookup Lookup) (float64, error) {
	l, err := n.left.eval(lookup)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(lookup)
	if err != nil {
		return 0, err
	}
	var v float64
	switch n.op {
	case '+':
		v = l + r
	case '-':
		v = l - r
	case '*':
		v = l * r
	case '/':
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		v = l / r
	default:
		return 0, fmt.Errorf("unsupported operator %q", n.op)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

func (n binaryNode) vars(seen map[string]struct{}, out []string) []string {
	out = n.left.vars(seen, out)
	return n.right.vars(seen, out)
}
