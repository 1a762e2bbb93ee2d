// Package profile loads and validates agent profile YAML files, grounded in
// the reference stack's YAML-based agent configuration shape.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"automatosx/internal/apperr"
)

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9-]{1,49}$`)

// Orchestration is the optional per-agent delegation policy block.
type Orchestration struct {
	MaxDelegationDepth int      `yaml:"maxDelegationDepth"`
	CanDelegateTo      []string `yaml:"canDelegateTo"` // deprecated, logged not enforced
}

// Stage is one entry of an agent's optional ordered workflow. TimeoutMs and
// MaxRetries are pointers so an absent value (nil) is distinguishable from
// an explicit zero, letting the stage controller fall back to its own
// config defaults exactly when the profile is silent.
type Stage struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	KeyQuestions   []string `yaml:"keyQuestions"`
	ExpectedOutput string   `yaml:"expectedOutput"`
	TimeoutMs      *int     `yaml:"timeout"`
	MaxRetries     *int     `yaml:"maxRetries"`
	SaveToMemory   bool     `yaml:"saveToMemory"`
	Checkpoint     bool     `yaml:"checkpoint"`
}

// AgentProfile is immutable once loaded.
type AgentProfile struct {
	Name          string        `yaml:"name"`
	DisplayName   string        `yaml:"displayName"`
	Role          string        `yaml:"role"`
	Description   string        `yaml:"description"`
	SystemPrompt  string        `yaml:"systemPrompt"`
	Abilities     []string      `yaml:"abilities"`
	Team          string        `yaml:"team"`
	Model         string        `yaml:"model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"maxTokens"`
	Stages        []Stage       `yaml:"stages"`
	Dependencies  []string      `yaml:"dependencies"`
	Orchestration Orchestration `yaml:"orchestration"`
}

// MaxDelegationDepth returns the profile's configured depth, defaulting to 2.
func (p *AgentProfile) MaxDelegationDepth() int {
	if p.Orchestration.MaxDelegationDepth > 0 {
		return p.Orchestration.MaxDelegationDepth
	}
	return 2
}

// Validate enforces AgentProfile's data-model invariants from SPEC_FULL.md §3.
func (p *AgentProfile) Validate() error {
	if !nameRe.MatchString(p.Name) {
		return apperr.New(apperr.CodeInvalidAgentName, fmt.Sprintf("agent name %q must match ^[a-z][a-z0-9-]{1,49}$", p.Name))
	}
	seen := make(map[string]bool, len(p.Stages))
	for _, s := range p.Stages {
		if seen[s.Name] {
			return apperr.New(apperr.CodeDuplicateStageName, fmt.Sprintf("stage name %q appears more than once in agent %q", s.Name, p.Name))
		}
		seen[s.Name] = true
	}
	return nil
}

// Loader reads agent profiles from a directory of "<name>.yaml" files.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir (typically Layout.AgentsDir()).
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads and validates a single agent profile by name.
func (l *Loader) Load(name string) (*AgentProfile, error) {
	path := filepath.Join(l.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("agent profile %q not found", name))
		}
		return nil, apperr.Wrap(apperr.CodeConfigError, "read agent profile", err)
	}

	var p AgentProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFormat, fmt.Sprintf("parse agent profile %q", name), err)
	}
	if p.Name == "" {
		p.Name = name
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadAll reads every "*.yaml" file in the loader's directory.
func (l *Loader) LoadAll() ([]*AgentProfile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CodeConfigError, "read agents directory", err)
	}

	var profiles []*AgentProfile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".yaml")]
		p, err := l.Load(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
