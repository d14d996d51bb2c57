package chat

import (
	"strings"

	"github.com/google/uuid"
)

// Icon is the closed set of agent icons.
type Icon string

const (
	IconBot      Icon = "bot"
	IconSparkles Icon = "sparkles"
	IconCode     Icon = "code"
	IconTerminal Icon = "terminal"
	IconFileText Icon = "file-text"
	IconGavel    Icon = "gavel"
	IconGlobe    Icon = "globe"
)

// Icons lists every icon in picker order.
func Icons() []Icon {
	return []Icon{IconBot, IconSparkles, IconCode, IconTerminal, IconFileText, IconGavel, IconGlobe}
}

// ParseIcon maps a name to an Icon, defaulting to IconBot on unknown keys.
func ParseIcon(name string) Icon {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, icon := range Icons() {
		if string(icon) == name {
			return icon
		}
	}
	return IconBot
}

type Category string

const (
	CategoryCoding   Category = "coding"
	CategoryWriting  Category = "writing"
	CategoryGeneral  Category = "general"
	CategoryAnalysis Category = "analysis"
)

func ParseCategory(name string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(name))); c {
	case CategoryCoding, CategoryWriting, CategoryGeneral, CategoryAnalysis:
		return c
	default:
		return CategoryGeneral
	}
}

// Agent is a named persona whose instruction seeds new sessions.
type Agent struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	SystemInstruction string   `json:"system_instruction"`
	Icon              Icon     `json:"icon"`
	IsSystem          bool     `json:"is_system"`
	Category          Category `json:"category"`
}

const (
	GeneralAgentID = "general"
	CoderAgentID   = "coder"
)

// DefaultAgents returns the built-in agents; the first is the default.
func DefaultAgents() []Agent {
	return []Agent{
		{
			ID:                GeneralAgentID,
			Name:              "Gemini",
			Description:       "標準アシスタント",
			SystemInstruction: "あなたはGoogleのGeminiです。丁寧に回答してください。",
			Icon:              IconBot,
			IsSystem:          true,
			Category:          CategoryGeneral,
		},
		{
			ID:                CoderAgentID,
			Name:              "Coding",
			Description:       "開発支援",
			SystemInstruction: "あなたは優秀なプログラマです。",
			Icon:              IconCode,
			IsSystem:          true,
			Category:          CategoryCoding,
		},
	}
}

type AgentInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"system_instruction"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
}

// NewAgent builds a custom agent. Name and instruction are required.
func NewAgent(in AgentInput) (Agent, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Agent{}, &ValidationError{Param: "name", Message: "name is required"}
	}
	instruction := strings.TrimSpace(in.Instruction)
	if instruction == "" {
		return Agent{}, &ValidationError{Param: "system_instruction", Message: "system_instruction is required"}
	}
	return Agent{
		ID:                uuid.NewString(),
		Name:              name,
		Description:       strings.TrimSpace(in.Description),
		SystemInstruction: instruction,
		Icon:              ParseIcon(in.Icon),
		Category:          ParseCategory(in.Category),
	}, nil
}

// FindAgent returns the agent with id, or the first agent when id is unknown.
func FindAgent(agents []Agent, id string) (Agent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	if len(agents) > 0 {
		return agents[0], false
	}
	return DefaultAgents()[0], false
}
