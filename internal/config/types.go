package config

// Config is the root configuration for steward.
type Config struct {
	Defaults      DefaultsConfig           `yaml:"defaults,omitempty"`
	Providers     map[string]ProviderEntry `yaml:"providers,omitempty"`
	Personalities []PersonalityEntry       `yaml:"personalities,omitempty"`
	Gateway       GatewayConfig            `yaml:"gateway,omitempty"`
	Logging       LoggingConfig            `yaml:"logging,omitempty"`
}

// DefaultsConfig selects the model and personality used for new chats.
type DefaultsConfig struct {
	Model       string `yaml:"model,omitempty"`
	Personality string `yaml:"personality,omitempty"`
}

// ProviderEntry defines one model provider.
type ProviderEntry struct {
	API     string       `yaml:"api,omitempty"` // "openai-completions" | "google-generative-ai"
	BaseURL string       `yaml:"baseUrl,omitempty"`
	APIKey  string       `yaml:"apiKey,omitempty"`
	EnvVar  string       `yaml:"envVar,omitempty"` // environment variable holding the key
	Models  []ModelEntry `yaml:"models,omitempty"`
}

// ModelEntry defines a single model offered by a provider.
type ModelEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// PersonalityEntry defines one assistant personality.
type PersonalityEntry struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name,omitempty"`
	Default            bool     `yaml:"default,omitempty"`
	PromptID           string   `yaml:"promptId,omitempty"`
	Model              string   `yaml:"model,omitempty"` // overrides defaults.model
	Tools              []string `yaml:"tools,omitempty"` // tool names offered to the model; empty means all
	ContextSets        []string `yaml:"contextSets,omitempty"`
	CustomInstructions string   `yaml:"customInstructions,omitempty"`
}

// GatewayConfig controls the WebSocket gateway server.
type GatewayConfig struct {
	Port int         `yaml:"port,omitempty"`
	Bind string      `yaml:"bind,omitempty"` // "loopback" | "lan"
	Auth GatewayAuth `yaml:"auth,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // silent..debug
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
