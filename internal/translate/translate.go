// Package translate renders symbolic right-hand sides as MATLAB array code.
//
// Expressions arrive in sympy's printed form, which is Python expression
// syntax. Each one is parsed with tree-sitter and rewritten leaf token by
// leaf token, so a mode symbol is only ever replaced as a whole identifier:
// psi_1_1 can never match inside psi_1_10, and x(1) never inside x(10).
// Text between tokens is copied unchanged, which preserves term order and
// performs no simplification.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"romgen/internal/derive"
	"romgen/internal/logging"
	"romgen/internal/modes"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"
)

// Separator joins translated entries: a MATLAB list comma followed by a line
// continuation, so every entry sits on its own line.
const Separator = ",...\n"

// modeSymbol matches identifiers shaped like deriver mode symbols.
var modeSymbol = regexp.MustCompile(`^(psi|theta)_\d+_\d+$`)

// Error reports an expression that could not be translated.
type Error struct {
	Index  int // position in the RHS
	Expr   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %d: %s: %q", e.Index, e.Reason, e.Expr)
}

// Options configures the target syntax.
type Options struct {
	// StateVector is the name of the state array, x in x(i).
	StateVector string
	// Aliases renames parameters, e.g. sigma -> s.
	Aliases map[string]string
	// PowerOp replaces the ** operator.
	PowerOp string
	// Reserved identifiers may not appear in source expressions because
	// they name variables of the emitted function.
	Reserved []string
}

// DefaultOptions targets the hk<N>_rhs(x,a,s,k,R) MATLAB function.
func DefaultOptions() Options {
	return Options{
		StateVector: "x",
		Aliases:     map[string]string{"sigma": "s"},
		PowerOp:     "^",
		Reserved:    []string{"x", "f", "s"},
	}
}

// Translator converts RHS sequences into MATLAB text. It owns a tree-sitter
// parser and is not safe for concurrent use; create one per run.
type Translator struct {
	opts     Options
	parser   *sitter.Parser
	reserved map[string]bool
}

// New creates a Translator with DefaultOptions.
func New() *Translator {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a Translator with custom target syntax.
func NewWithOptions(opts Options) *Translator {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	reserved := make(map[string]bool, len(opts.Reserved))
	for _, r := range opts.Reserved {
		reserved[r] = true
	}
	return &Translator{opts: opts, parser: parser, reserved: reserved}
}

// Close releases the parser.
func (t *Translator) Close() {
	t.parser.Close()
}

// Translate renders rhs as one block of MATLAB entries joined by Separator,
// with no trailing separator. Mode symbols become x(i) using set's flat
// index assignment.
func (t *Translator) Translate(ctx context.Context, rhs derive.RHS, set modes.Set) (string, error) {
	index := set.SymbolIndex()
	terms := make([]string, len(rhs))
	for i, expr := range rhs {
		out, err := t.translateOne(ctx, string(expr), index)
		if err != nil {
			if te, ok := err.(*Error); ok {
				te.Index = i
			}
			return "", err
		}
		terms[i] = out
	}

	logging.Get(logging.CategoryTranslate).Debug("translated",
		zap.Int("terms", len(terms)),
		zap.Int("num_modes", set.NumModes()))
	return strings.Join(terms, Separator), nil
}

func (t *Translator) translateOne(ctx context.Context, expr string, index map[string]int) (string, error) {
	src := []byte(strings.TrimSpace(expr))
	if len(src) == 0 {
		return "", &Error{Expr: expr, Reason: "empty expression"}
	}

	tree, err := t.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return "", &Error{Expr: expr, Reason: "syntax error"}
	}
	if root.NamedChildCount() != 1 || root.NamedChild(0).Type() != "expression_statement" ||
		root.NamedChild(0).NamedChildCount() != 1 || !isExpression(root.NamedChild(0).NamedChild(0)) {
		return "", &Error{Expr: expr, Reason: "not a single expression"}
	}

	var (
		b    strings.Builder
		last uint32
		werr error
	)
	walkLeaves(root, func(n *sitter.Node) bool {
		b.Write(src[last:n.StartByte()])
		last = n.EndByte()

		text := n.Content(src)
		rewritten, err := t.rewrite(n.Type(), text, index)
		if err != nil {
			werr = &Error{Expr: expr, Reason: err.Error()}
			return false
		}
		b.WriteString(rewritten)
		return true
	})
	if werr != nil {
		return "", werr
	}
	b.Write(src[last:])
	return b.String(), nil
}

// rewrite maps one leaf token to its target text.
func (t *Translator) rewrite(kind, text string, index map[string]int) (string, error) {
	switch kind {
	case "identifier":
		if i, ok := index[text]; ok {
			return fmt.Sprintf("%s(%d)", t.opts.StateVector, i), nil
		}
		if modeSymbol.MatchString(text) {
			return "", fmt.Errorf("mode symbol %s is not in the mode set", text)
		}
		if alias, ok := t.opts.Aliases[text]; ok {
			return alias, nil
		}
		if t.reserved[text] {
			return "", fmt.Errorf("identifier %s collides with a target variable", text)
		}
		return text, nil
	case "**":
		return t.opts.PowerOp, nil
	}
	return text, nil
}

// isExpression rejects statement-level forms that parse inside an
// expression_statement but are not a single value.
func isExpression(n *sitter.Node) bool {
	switch n.Type() {
	case "expression_list", "assignment", "augmented_assignment", "yield":
		return false
	}
	return true
}

// walkLeaves visits every leaf token in source order, including anonymous
// operator tokens. fn returns false to stop.
func walkLeaves(n *sitter.Node, fn func(*sitter.Node) bool) bool {
	count := int(n.ChildCount())
	if count == 0 {
		return fn(n)
	}
	for i := 0; i < count; i++ {
		if !walkLeaves(n.Child(i), fn) {
			return false
		}
	}
	return true
}
