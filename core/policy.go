package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Requirement names what a rule demands of the caller.
//
//	public          served without a principal
//	authenticated   active principal required
//	role:<name>     active principal carrying the role:<name> authority
type Requirement string

const (
	RequirePublic        Requirement = "public"
	RequireAuthenticated Requirement = "authenticated"
)

// Rule binds a path pattern to a requirement. A pattern ending in "/**"
// matches the prefix before it and everything below; otherwise it matches the
// exact path. Rules are evaluated top to bottom, first match wins.
type Rule struct {
	Pattern     string      `yaml:"pattern"`
	Requirement Requirement `yaml:"requirement"`
}

// Matches reports whether the rule's pattern covers the given request path.
func (r Rule) Matches(path string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Pattern
}

// Policy is an ordered, state-free rule list. Requests matching no rule fall
// through to the default requirement.
type Policy struct {
	Rules   []Rule
	Default Requirement
}

// NewPolicy builds a policy with a default of authenticated access.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{Rules: rules, Default: RequireAuthenticated}
}

// DefaultPolicy grants unauthenticated access to the given public prefixes,
// the auth endpoints, and the liveness probe; everything else requires an
// authenticated principal. Logout is public so that clearing a stale cookie
// never requires a live session.
func DefaultPolicy(publicPrefixes []string) *Policy {
	rules := []Rule{
		{Pattern: "/healthz", Requirement: RequirePublic},
		{Pattern: "/api/auth/login", Requirement: RequirePublic},
		{Pattern: "/api/auth/logout", Requirement: RequirePublic},
		{Pattern: "/api/admin/**", Requirement: "role:admin"},
	}
	for _, p := range publicPrefixes {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		rules = append(rules, Rule{Pattern: p + "/**", Requirement: RequirePublic})
	}
	return NewPolicy(rules...)
}

// Authorize decides whether a request for path may proceed. principal is nil
// for anonymous callers. The check is idempotent and mutates nothing.
func (p *Policy) Authorize(path string, principal *Principal) Decision {
	req := p.Default
	if req == "" {
		req = RequireAuthenticated
	}
	for _, rule := range p.Rules {
		if rule.Matches(path) {
			req = rule.Requirement
			break
		}
	}
	return satisfies(req, principal)
}

func satisfies(req Requirement, principal *Principal) Decision {
	switch {
	case req == RequirePublic:
		return Allow
	case req == RequireAuthenticated:
		if principal != nil && principal.Active() {
			return Allow
		}
		return Deny
	case strings.HasPrefix(string(req), "role:"):
		if principal != nil && principal.Active() && principal.HasAuthority(string(req)) {
			return Allow
		}
		return Deny
	default:
		return Deny
	}
}

// Validate rejects rules with empty patterns or unknown requirements.
func (p *Policy) Validate() error {
	for i, rule := range p.Rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("rule %d: empty pattern", i)
		}
		switch {
		case rule.Requirement == RequirePublic, rule.Requirement == RequireAuthenticated:
		case strings.HasPrefix(string(rule.Requirement), "role:") && len(rule.Requirement) > len("role:"):
		default:
			return fmt.Errorf("rule %d: unknown requirement %q", i, rule.Requirement)
		}
	}
	return nil
}

type policyFile struct {
	Rules   []Rule      `yaml:"rules"`
	Default Requirement `yaml:"default"`
}

// LoadPolicyFile reads an ordered rule list from a YAML file.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	p := &Policy{Rules: pf.Rules, Default: pf.Default}
	if p.Default == "" {
		p.Default = RequireAuthenticated
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}
