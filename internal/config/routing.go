package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoutingConfig is the fixed set of channels, teams and routing targets the
// bot knows about. It is read from a YAML file; missing values fall back to
// DefaultRouting.
type RoutingConfig struct {
	BotName  string         `yaml:"bot_name"`
	Channels ChannelsConfig `yaml:"channels"`
	// OnCall is mentioned by the escalation notice. A leading S marks a
	// user group.
	OnCall string `yaml:"on_call"`
	// Teams are in-domain groups; picking one assigns the ticket.
	Teams []TargetConfig `yaml:"teams"`
	// HandoffTargets are out-of-domain groups; picking one hands the ticket off.
	HandoffTargets  []TargetConfig `yaml:"handoff_targets"`
	IssueCategories []string       `yaml:"issue_categories"`
}

// ChannelsConfig names the channel used by each intake flow.
type ChannelsConfig struct {
	Ops          string `yaml:"ops"`
	Broadcast    string `yaml:"broadcast"`
	Substitution string `yaml:"substitution"`
	Helpdesk     string `yaml:"helpdesk"`
	Emergency    string `yaml:"emergency"`
}

// TargetConfig is a routing target.
type TargetConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DefaultRouting returns the built-in routing table.
func DefaultRouting() RoutingConfig {
	return RoutingConfig{
		BotName: "Pepe",
		Channels: ChannelsConfig{
			Ops:          "C0719R3NQ91",
			Broadcast:    "C05Q52ZTQ3X",
			Substitution: "C0719R3NQ91",
			Helpdesk:     "C0719R3NQ91",
			Emergency:    "C0719R3NQ91",
		},
		HandoffTargets: []TargetConfig{
			{ID: "S05RYHJ41C6", Name: "academic-support"},
			{ID: "S02R59UL0RH", Name: "tech-support"},
		},
		IssueCategories: []string{
			"Ajar", "Cuti", "Data related", "Observasi", "Piket",
			"Polling", "Recording Video", "Zoom", "Others",
		},
	}
}

// LoadRouting reads the routing file at path. An empty path returns the defaults.
func LoadRouting(path string) (*RoutingConfig, error) {
	routing := DefaultRouting()
	if path == "" {
		return &routing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing file: %w", err)
	}

	var file RoutingConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routing file: %w", err)
	}
	routing.merge(file)

	if err := routing.Validate(); err != nil {
		return nil, err
	}
	return &routing, nil
}

func (r *RoutingConfig) merge(o RoutingConfig) {
	if o.BotName != "" {
		r.BotName = o.BotName
	}
	if o.OnCall != "" {
		r.OnCall = o.OnCall
	}
	mergeString(&r.Channels.Ops, o.Channels.Ops)
	mergeString(&r.Channels.Broadcast, o.Channels.Broadcast)
	mergeString(&r.Channels.Substitution, o.Channels.Substitution)
	mergeString(&r.Channels.Helpdesk, o.Channels.Helpdesk)
	mergeString(&r.Channels.Emergency, o.Channels.Emergency)
	if o.Teams != nil {
		r.Teams = o.Teams
	}
	if o.HandoffTargets != nil {
		r.HandoffTargets = o.HandoffTargets
	}
	if o.IssueCategories != nil {
		r.IssueCategories = o.IssueCategories
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks that the routing table is usable.
func (r *RoutingConfig) Validate() error {
	if r.Channels.Ops == "" {
		return fmt.Errorf("channels.ops is required")
	}
	seen := make(map[string]string)
	for _, t := range r.Teams {
		if t.ID == "" {
			return fmt.Errorf("team %q: id is required", t.Name)
		}
		seen[t.ID] = "teams"
	}
	for _, t := range r.HandoffTargets {
		if t.ID == "" {
			return fmt.Errorf("handoff target %q: id is required", t.Name)
		}
		if list, ok := seen[t.ID]; ok {
			return fmt.Errorf("handoff target %q is also listed in %s", t.ID, list)
		}
	}
	if len(r.IssueCategories) == 0 {
		return fmt.Errorf("issue_categories must not be empty")
	}
	return nil
}

// IsHandoffTarget reports whether id is an out-of-domain routing target.
func (r *RoutingConfig) IsHandoffTarget(id string) bool {
	for _, t := range r.HandoffTargets {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Target finds a configured team or handoff target by id.
func (r *RoutingConfig) Target(id string) (TargetConfig, bool) {
	for _, t := range r.Teams {
		if t.ID == id {
			return t, true
		}
	}
	for _, t := range r.HandoffTargets {
		if t.ID == id {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// IsIssueCategory reports whether name is one of the configured categories.
func (r *RoutingConfig) IsIssueCategory(name string) bool {
	for _, c := range r.IssueCategories {
		if c == name {
			return true
		}
	}
	return false
}
