package alerting

import (
	"encoding/json"
	"fmt"
	"os"

	"HomelabMonitorAPI/internal/models"

	"gopkg.in/yaml.v3"
)

// SeedRule is one rule of the YAML seed file.
type SeedRule struct {
	Name            string    `yaml:"name"`
	Description     string    `yaml:"description"`
	MetricType      string    `yaml:"metric_type"`
	Condition       Condition `yaml:"condition"`
	Severity        string    `yaml:"severity"`
	CooldownMinutes *int      `yaml:"cooldown_minutes"`
	Enabled         *bool     `yaml:"enabled"`
}

type seedFile struct {
	Rules []SeedRule `yaml:"rules"`
}

// DefaultRules are installed when the store has no rules and no seed file is configured.
func DefaultRules() []SeedRule {
	return []SeedRule{
		{
			Name:        "High CPU Usage",
			Description: "Alert when CPU usage exceeds 90%",
			MetricType:  models.MetricTypeCPU,
			Condition:   Condition{Field: "percent", Operator: ">", Threshold: 90},
			Severity:    models.SeverityWarning,
		},
		{
			Name:        "Critical CPU Usage",
			Description: "Alert when CPU usage exceeds 95%",
			MetricType:  models.MetricTypeCPU,
			Condition:   Condition{Field: "percent", Operator: ">", Threshold: 95},
			Severity:    models.SeverityCritical,
		},
		{
			Name:        "High Memory Usage",
			Description: "Alert when memory usage exceeds 85%",
			MetricType:  models.MetricTypeMemory,
			Condition:   Condition{Field: "percent", Operator: ">", Threshold: 85},
			Severity:    models.SeverityWarning,
		},
		{
			Name:        "Critical Memory Usage",
			Description: "Alert when memory usage exceeds 95%",
			MetricType:  models.MetricTypeMemory,
			Condition:   Condition{Field: "percent", Operator: ">", Threshold: 95},
			Severity:    models.SeverityCritical,
		},
	}
}

// LoadSeedFile reads rules from a YAML document of the form
//
//	rules:
//	  - name: High CPU Usage
//	    metric_type: cpu
//	    condition: {field: percent, operator: ">", threshold: 90}
//	    severity: WARNING
func LoadSeedFile(path string) ([]SeedRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]SeedRule, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, r := range f.Rules {
		if r.Name == "" || r.MetricType == "" {
			return nil, fmt.Errorf("seed rule %d: name and metric_type are required", i)
		}
		if r.Condition.Field == "" || r.Condition.Operator == "" {
			return nil, fmt.Errorf("seed rule %q: condition needs field and operator", r.Name)
		}
		if !KnownOperator(r.Condition.Operator) {
			return nil, fmt.Errorf("seed rule %q: unknown operator %q", r.Name, r.Condition.Operator)
		}
		if !models.ValidSeverity(r.Severity) {
			return nil, fmt.Errorf("seed rule %q: invalid severity %q", r.Name, r.Severity)
		}
	}
	return f.Rules, nil
}

// Request converts the seed entry into a create request with a flat condition.
func (s SeedRule) Request() (*models.CreateAlertRuleRequest, error) {
	cond, err := json.Marshal(s.Condition)
	if err != nil {
		return nil, err
	}
	req := &models.CreateAlertRuleRequest{
		Name:            s.Name,
		MetricType:      s.MetricType,
		Condition:       cond,
		Severity:        s.Severity,
		Enabled:         s.Enabled,
		CooldownMinutes: s.CooldownMinutes,
	}
	if s.Description != "" {
		desc := s.Description
		req.Description = &desc
	}
	return req, nil
}
