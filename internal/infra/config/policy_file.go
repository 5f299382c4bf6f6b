// internal/infra/config/policy_file.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"koifarm/internal/domain/access"
)

// policyFile is the YAML shape of an access policy:
//
//	loginPath: /login
//	rules:
//	  - prefix: /manager
//	    roles: [manager, farm-staff]
//	authOnly: [/login, /register]
//	exclusions: [/api/, /static/]
//
// Omitted lists keep the defaults.
type policyFile struct {
	LoginPath  string           `yaml:"loginPath"`
	Rules      []policyFileRule `yaml:"rules"`
	AuthOnly   []string         `yaml:"authOnly"`
	Exclusions []string         `yaml:"exclusions"`
}

type policyFileRule struct {
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// LoadPolicy returns the access policy at path, or the default policy when path is empty.
func LoadPolicy(path string) (*access.Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return access.DefaultPolicy(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read policy file: %w", err)
	}
	return ParsePolicy(b)
}

// ParsePolicy decodes a YAML policy. Unknown fields and unknown roles are rejected.
func ParsePolicy(b []byte) (*access.Policy, error) {
	var pf policyFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode policy: %w", err)
	}

	def := access.DefaultPolicy()

	rules := def.Rules
	if pf.Rules != nil {
		rules = make([]access.RouteRule, 0, len(pf.Rules))
		for _, r := range pf.Rules {
			roles := make([]access.Role, 0, len(r.Roles))
			for _, raw := range r.Roles {
				roles = append(roles, access.Role(raw))
			}
			rules = append(rules, access.RouteRule{Prefix: r.Prefix, Roles: roles})
		}
	}
	authOnly := def.AuthOnly
	if pf.AuthOnly != nil {
		authOnly = pf.AuthOnly
	}
	exclusions := def.Exclusions
	if pf.Exclusions != nil {
		exclusions = pf.Exclusions
	}

	return access.NewPolicy(pf.LoginPath, rules, authOnly, exclusions)
}
