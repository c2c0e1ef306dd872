package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// Guard rules are deployment-operator-defined CEL expressions evaluated over
// the submitted scalar fields. A rule that evaluates false contributes its
// message to the validation findings. Expressions see `ctx` as
// map<string,string> of submitted scalar field values.
type guardRuleSpec struct {
	Name    string `yaml:"name"`
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`
}

type guardsFile struct {
	Version int             `yaml:"version"`
	Rules   []guardRuleSpec `yaml:"rules"`
}

type compiledGuard struct {
	spec    guardRuleSpec
	program cel.Program
}

type siteConfigGuards struct {
	rules []compiledGuard
}

var newGuardCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

func noSiteConfigGuards() *siteConfigGuards { return &siteConfigGuards{} }

// loadSiteConfigGuards compiles the guards file eagerly so a bad expression
// fails at startup, not mid-update. A missing file means no rules.
func loadSiteConfigGuards(path string) (*siteConfigGuards, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return noSiteConfigGuards(), nil
		}
		return nil, err
	}
	return parseSiteConfigGuards(b)
}

func parseSiteConfigGuards(b []byte) (*siteConfigGuards, error) {
	var f guardsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, errors.New("guards: unsupported version")
	}

	env, err := newGuardCELEnv()
	if err != nil {
		return nil, err
	}

	g := &siteConfigGuards{}
	for _, spec := range f.Rules {
		spec.Name = strings.TrimSpace(spec.Name)
		spec.Expr = strings.TrimSpace(spec.Expr)
		if spec.Name == "" || spec.Expr == "" {
			return nil, errors.New("guards: rule name and expr required")
		}
		ast, issues := env.Compile(spec.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("guards: rule %s: %w", spec.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("guards: rule %s must evaluate to bool", spec.Name)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("guards: rule %s: %w", spec.Name, err)
		}
		if spec.Message == "" {
			spec.Message = fmt.Sprintf("guard rule %s rejected the update", spec.Name)
		}
		g.rules = append(g.rules, compiledGuard{spec: spec, program: program})
	}
	return g, nil
}

func (g *siteConfigGuards) evaluate(ctxMap map[string]string) []string {
	var findings []string
	for _, rule := range g.rules {
		out, _, err := rule.program.Eval(map[string]any{"ctx": ctxMap})
		if err != nil {
			findings = append(findings, fmt.Sprintf("guard rule %s failed to evaluate", rule.spec.Name))
			continue
		}
		ok, _ := out.Value().(bool)
		if !ok {
			findings = append(findings, rule.spec.Message)
		}
	}
	return findings
}

func guardsPathFromEnv() string {
	if v := os.Getenv("SITECONFIG_GUARDS_PATH"); v != "" {
		return v
	}
	path := "config/siteconfig/guards.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		path = filepath.Join("..", path)
	}
	return "config/siteconfig/guards.yaml"
}
