package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models stride.yml.
type Config struct {
	Org struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"org"`
	RBAC struct {
		Roles         map[string]RBACRole `yaml:"roles"`
		GateAttestors []string            `yaml:"gate_attestors"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Server   ServerConfig    `yaml:"server"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// WebhookConfig is one outbound event subscription.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// IsEnabled defaults to true when enabled is omitted.
func (w WebhookConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Timeout returns the delivery timeout, 5s when unset.
func (w WebhookConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// Wants reports whether the webhook subscribes to evtType. An empty filter
// subscribes to everything.
func (w WebhookConfig) Wants(evtType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == evtType || e == "*" {
			return true
		}
	}
	return false
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

const (
	RoleAdmin  = "coe_admin"
	RoleViewer = "leadership_viewer"
)

// Permission ids.
const (
	PermRequirementRead    = "requirement.read"
	PermRequirementCreate  = "requirement.create"
	PermRequirementAdvance = "requirement.advance"
	PermPathAssign         = "requirement.assign_path"
	PermGateAttest         = "gate.attest"
	PermReviewCreate       = "review.create"
	PermReviewRead         = "review.read"
	PermEventsRead         = "events.read"
	PermRBACManage         = "rbac.manage"
	PermAPIKeyManage       = "apikey.manage"
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run stride init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles[RoleAdmin]; !ok {
			return fmt.Errorf("config.rbac.roles must include %s", RoleAdmin)
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for _, roleID := range c.RBAC.GateAttestors {
		if roleID == "" {
			return fmt.Errorf("config.rbac.gate_attestors has empty role id")
		}
		if len(c.RBAC.Roles) > 0 {
			if _, ok := c.RBAC.Roles[roleID]; !ok {
				return fmt.Errorf("gate attestor references unknown role %s", roleID)
			}
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("webhooks[%d].url must be an http(s) url", i)
		}
		if wh.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must be >= 0", i)
		}
	}
	return nil
}

// RoleCanAttest reports whether role is listed in rbac.gate_attestors.
func (c *Config) RoleCanAttest(role string) bool {
	if c == nil || role == "" {
		return false
	}
	for _, r := range c.RBAC.GateAttestors {
		if r == role {
			return true
		}
	}
	return false
}

// RoleHasPermission checks the configured permission list of a role.
func (c *Config) RoleHasPermission(role, perm string) bool {
	if c == nil {
		return false
	}
	r, ok := c.RBAC.Roles[role]
	if !ok {
		return false
	}
	for _, p := range r.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stride.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// Default returns the default Config struct for an org.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(orgID)), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `org:
  id: %s
  name: Centre of Excellence

rbac:
  roles:
    coe_admin:
      description: "Runs the pipeline: creates, advances and reviews requirements"
      permissions:
        - requirement.read
        - requirement.create
        - requirement.advance
        - requirement.assign_path
        - gate.attest
        - review.create
        - review.read
        - events.read
        - rbac.manage
        - apikey.manage
    leadership_viewer:
      description: "Read-only dashboard access"
      permissions:
        - requirement.read
        - review.read
        - events.read
  gate_attestors: [coe_admin]

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
