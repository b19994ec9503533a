package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/driftlab/drift/llm"
)

// Config is the top-level engine configuration.
type Config struct {
	// DBPath is the SQLite file holding locators, fingerprints, and the
	// discovery audit log. Empty = "data/drift.db".
	DBPath string `yaml:"db_path"`

	// Model configures the AI fallback. Unset = no AI fallback.
	Model llm.Config `yaml:"model"`

	// Seeds are manual locators loaded at startup. They never clobber
	// locators already in the registry.
	Seeds []Seed `yaml:"seeds"`
}

// Seed is one manually curated locator entry.
type Seed struct {
	PageCategory string   `yaml:"page_category"`
	Element      string   `yaml:"element"`
	Candidates   []string `yaml:"candidates"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "data/drift.db"
	}
	if len(c.Seeds) == 0 {
		c.Seeds = defaultSeeds()
	}
}

// defaultSeeds are the locators the target is known to ship today. The
// registry and AI discovery take over as they rot.
func defaultSeeds() []Seed {
	return []Seed{
		{
			PageCategory: "post_page",
			Element:      "comment_list",
			Candidates:   []string{`ul[class*="comment"]`, `[data-testid="comments"]`, "article ul"},
		},
		{
			PageCategory: "post_page",
			Element:      "comment_input",
			Candidates:   []string{`textarea[aria-label*="comment" i]`, `form textarea`},
		},
		{
			PageCategory: "post_page",
			Element:      "view_more_comments",
			Candidates:   []string{`[aria-label*="more comments" i]`, `button[class*="load"]`},
		},
		{
			PageCategory: "login_page",
			Element:      "username_input",
			Candidates:   []string{`input[name="username"]`, `input[name="email"]`},
		},
		{
			PageCategory: "login_page",
			Element:      "password_input",
			Candidates:   []string{`input[name="password"]`, `input[type="password"]`},
		},
	}
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("engine: parse config: %w", err)
	}
	return &cfg, nil
}
