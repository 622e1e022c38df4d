package story

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Built-in completion rules
const (
	RuleThreshold = "threshold"
	RuleStrict    = "strict"
)

var builtInRules = map[string]string{
	RuleThreshold: "encountered >= total && responded >= 0.8 * encountered",
	RuleStrict:    "encountered >= total && ignored == 0",
}

// ruleEnv is the variable set a completion expression is evaluated against
type ruleEnv struct {
	Total       int `expr:"total"`
	Responded   int `expr:"responded"`
	Ignored     int `expr:"ignored"`
	Encountered int `expr:"encountered"`
}

// Rule decides when a story arc counts as completed
type Rule struct {
	Name       string
	Expression string
	program    *vm.Program
}

// NewRule compiles a built-in rule by name, or treats name as a custom boolean expression
func NewRule(name string) (*Rule, error) {
	if name == "" {
		name = RuleThreshold
	}
	expression, ok := builtInRules[name]
	if !ok {
		expression = name
	}

	program, err := expr.Compile(expression, expr.Env(ruleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid completion rule %q: %w", name, err)
	}
	return &Rule{Name: name, Expression: expression, program: program}, nil
}

// MustRule is NewRule for built-in names; it panics on a bad expression
func MustRule(name string) *Rule {
	rule, err := NewRule(name)
	if err != nil {
		panic(err)
	}
	return rule
}

// Completed evaluates the rule against an arc's counters
func (r *Rule) Completed(arc ArcProgress) (bool, error) {
	env := ruleEnv{
		Total:       arc.TotalCards,
		Responded:   arc.CardsResponded,
		Ignored:     arc.CardsIgnored,
		Encountered: arc.CardsResponded + arc.CardsIgnored,
	}

	result, err := vm.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate completion rule %q: %w", r.Name, err)
	}
	done, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("completion rule %q did not evaluate to boolean", r.Name)
	}
	return done, nil
}
