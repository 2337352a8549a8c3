// Package expr evaluates the restricted arithmetic used by auto-duration
// equations: decimal literals, named variables, + - * /, unary minus and
// parentheses. There is no assignment, no function call and no control flow.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MaxLength = 256
	maxDepth  = 32
)

var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrNotFinite       = errors.New("result is not a finite number")
	ErrEmpty           = errors.New("empty expression")
	ErrTooLong         = fmt.Errorf("expression longer than %d bytes", MaxLength)
)

// Variables accepted in equations.
const (
	VarWaterTemp  = "waterTemp"
	VarExtTemp    = "extTemp"
	VarWeatherMax = "weatherMax"
	VarWeatherMin = "weatherMin"
	VarSunshine   = "sunshine"
)

// Allowed is the fixed variable table.
var Allowed = []string{VarWaterTemp, VarExtTemp, VarWeatherMax, VarWeatherMin, VarSunshine}

// Lookup resolves a variable. Implementations return an error wrapping
// ErrUnknownVariable for names they do not know.
type Lookup func(name string) (float64, error)

// Vars is a map-backed Lookup.
type Vars map[string]float64

func (v Vars) Lookup(name string) (float64, error) {
	x, ok := v[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return x, nil
}

// Expression is a parsed, immutable AST.
type Expression struct {
	src  string
	root node
}

func (e *Expression) String() string { return e.src }

// Eval computes the value. It never panics; every failure is an error.
func (e *Expression) Eval(lookup Lookup) (float64, error) {
	v, err := e.root.eval(lookup)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// Variables lists referenced names in order of first use.
func (e *Expression) Variables() []string {
	return e.root.vars(map[string]struct{}{}, nil)
}

// Parse builds an Expression from src.
func Parse(src string) (*Expression, error) {
	if len(src) > MaxLength {
		return nil, ErrTooLong
	}
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmpty
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", describe(t))}
	}
	return &Expression{src: src, root: root}, nil
}

// Validate checks syntax and that every variable is in Allowed.
func Validate(src string) error {
	e, err := Parse(src)
	if err != nil {
		return err
	}
	for _, name := range e.Variables() {
		if !isAllowed(name) {
			return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
	}
	return nil
}

// Evaluate parses and evaluates src in one step.
func Evaluate(src string, lookup Lookup) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(lookup)
}

func isAllowed(name string) bool {
	for _, a := range Allowed {
		if a == name {
			return true
		}
	}
	return false
}
