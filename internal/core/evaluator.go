package core

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RuleEnv is the environment public routing rules are evaluated against.
type RuleEnv struct {
	FileName string
	Ext      string // lower-case, without the dot
	MimeType string
}

// NewRuleEnv builds the rule environment for a file, falling back to the
// extension's registered MIME type when mimeType is empty.
func NewRuleEnv(fileName, mimeType string) RuleEnv {
	ext := strings.ToLower(filepath.Ext(fileName))
	if mimeType == "" && ext != "" {
		mimeType = mime.TypeByExtension(ext)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return RuleEnv{
		FileName: fileName,
		Ext:      strings.TrimPrefix(ext, "."),
		MimeType: strings.ToLower(mimeType),
	}
}

// Condition is a compiled boolean rule.
type Condition struct {
	source  string
	program *vm.Program
}

// CompileCondition compiles a boolean expression over RuleEnv.
func CompileCondition(condition string) (*Condition, error) {
	if strings.TrimSpace(condition) == "" {
		return nil, fmt.Errorf("condition must not be empty")
	}
	program, err := expr.Compile(condition, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid condition '%s': %v", condition, err)
	}
	return &Condition{source: condition, program: program}, nil
}

func (c *Condition) String() string {
	return c.source
}

// Match evaluates the condition.
func (c *Condition) Match(env RuleEnv) (bool, error) {
	output, err := expr.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %v", err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition must return a boolean, got %T", output)
	}
	return result, nil
}
