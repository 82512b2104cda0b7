package protocol

// Provider identifies an AI agent backend. The string value is the
// stable lowercase "command name" used both on the wire and in
// `/provider <name>` commands.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderClaude   Provider = "claude"
	ProviderCodex    Provider = "codex"
	ProviderOpenCode Provider = "opencode"
	ProviderDummy    Provider = "dummy"
	ProviderMock     Provider = "mock"
)

// defaultModels maps each provider to its default model. OpenCode has
// no default and is intentionally absent from this map.
var defaultModels = map[Provider]string{
	ProviderGemini: "auto-gemini-3",
	ProviderClaude: "claude-sonnet-4-6",
	ProviderCodex:  "gpt-5.3-codex",
	ProviderDummy:  "echo",
	ProviderMock:   "mock-model",
}

// DefaultModelFor returns the default model name for p and true, or
// ("", false) if p has no default (OpenCode, or an unrecognized value).
func DefaultModelFor(p Provider) (string, bool) {
	m, ok := defaultModels[p]
	return m, ok
}

// ParseProvider maps a command-line provider token to a Provider. It
// recognizes the canonical command names plus the aliases the original
// bridge accepted for its dummy backend ("dummy-bot", "dummybot").
// Returns ("", false) for anything unrecognized; callers must treat
// that as a silent no-op per the command handler's contract.
func ParseProvider(name string) (Provider, bool) {
	switch name {
	case "gemini":
		return ProviderGemini, true
	case "claude":
		return ProviderClaude, true
	case "codex":
		return ProviderCodex, true
	case "opencode":
		return ProviderOpenCode, true
	case "dummy", "dummy-bot", "dummybot":
		return ProviderDummy, true
	case "mock":
		return ProviderMock, true
	default:
		return "", false
	}
}
