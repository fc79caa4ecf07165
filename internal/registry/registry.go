package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/editgroups/editgroups/internal/database"
)

// Registry is the ordered list of known tools. Patterns are compiled once
// when the registry is built and shared read-only afterwards.
type Registry struct {
	matchers []*Matcher
}

// New builds a registry from tools, keeping their order.
func New(tools []database.Tool) (*Registry, error) {
	r := &Registry{matchers: make([]*Matcher, 0, len(tools))}
	for _, tool := range tools {
		m, err := NewMatcher(tool)
		if err != nil {
			return nil, err
		}
		r.matchers = append(r.matchers, m)
	}
	return r, nil
}

// Match tries every tool in registry order and returns the first match.
func (r *Registry) Match(user, comment string) (*database.Tool, Match, bool) {
	for _, m := range r.matchers {
		if match, ok := m.Match(user, comment); ok {
			return &m.Tool, match, true
		}
	}
	return nil, Match{}, false
}

// Len returns the number of tools in the registry.
func (r *Registry) Len() int {
	return len(r.matchers)
}

// Tools returns the tools in registry order.
func (r *Registry) Tools() []database.Tool {
	tools := make([]database.Tool, len(r.matchers))
	for i, m := range r.matchers {
		tools[i] = m.Tool
	}
	return tools
}

// ToolDefinition is the YAML form of a tool.
type ToolDefinition struct {
	Name           string `yaml:"name"`
	ShortID        string `yaml:"shortid"`
	IDRegex        string `yaml:"idregex"`
	IDGroupID      int    `yaml:"idgroupid"`
	SummaryRegex   string `yaml:"summaryregex"`
	SummaryGroupID int    `yaml:"summarygroupid"`
	UserRegex      string `yaml:"userregex,omitempty"`
	UserGroupID    int    `yaml:"usergroupid,omitempty"`
	URL            string `yaml:"url"`
}

type registryFile struct {
	Tools []ToolDefinition `yaml:"tools"`
}

// LoadFile reads tool definitions from a YAML file. File order is registry order.
func LoadFile(path string) ([]database.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML tool definitions and validates each of them.
func Parse(data []byte) ([]database.Tool, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tools file: %w", err)
	}

	seen := make(map[string]bool, len(file.Tools))
	tools := make([]database.Tool, 0, len(file.Tools))
	for i, def := range file.Tools {
		if def.ShortID == "" {
			return nil, fmt.Errorf("tool #%d (%s): missing shortid", i+1, def.Name)
		}
		if seen[def.ShortID] {
			return nil, fmt.Errorf("tool %s: duplicate shortid", def.ShortID)
		}
		seen[def.ShortID] = true

		tool := def.toTool(i)
		if _, err := NewMatcher(tool); err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func (d ToolDefinition) toTool(position int) database.Tool {
	return database.Tool{
		Name:         d.Name,
		ShortID:      d.ShortID,
		Position:     position,
		IDRegex:      d.IDRegex,
		IDGroup:      d.IDGroupID,
		SummaryRegex: d.SummaryRegex,
		SummaryGroup: d.SummaryGroupID,
		UserRegex:    d.UserRegex,
		UserGroup:    d.UserGroupID,
		URL:          d.URL,
	}
}
