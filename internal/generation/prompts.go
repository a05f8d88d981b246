package generation

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type catalogue struct {
	Itinerary promptPair `yaml:"itinerary"`
}

// Prompts holds the parsed prompt templates.
type Prompts struct {
	system *template.Template
	user   *template.Template
}

type promptData struct {
	Days   int
	Prompt string
}

// LoadPrompts parses the embedded catalogue.
func LoadPrompts() (*Prompts, error) {
	return ParsePrompts(promptsYAML)
}

// ParsePrompts parses a catalogue in the prompts.yaml format.
func ParsePrompts(data []byte) (*Prompts, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("generation.ParsePrompts: %w", err)
	}
	if strings.TrimSpace(c.Itinerary.System) == "" || strings.TrimSpace(c.Itinerary.User) == "" {
		return nil, fmt.Errorf("generation.ParsePrompts: itinerary.system and itinerary.user are required")
	}
	system, err := template.New("system").Option("missingkey=error").Parse(c.Itinerary.System)
	if err != nil {
		return nil, fmt.Errorf("generation.ParsePrompts: system: %w", err)
	}
	user, err := template.New("user").Option("missingkey=error").Parse(c.Itinerary.User)
	if err != nil {
		return nil, fmt.Errorf("generation.ParsePrompts: user: %w", err)
	}
	return &Prompts{system: system, user: user}, nil
}

// Render returns the system and user messages for a request.
func (p *Prompts) Render(req Request) (system, user string, err error) {
	data := promptData{Days: req.Days, Prompt: req.Prompt}
	var sb, ub strings.Builder
	if err := p.system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("generation.Prompts.Render: system: %w", err)
	}
	if err := p.user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("generation.Prompts.Render: user: %w", err)
	}
	return sb.String(), ub.String(), nil
}
