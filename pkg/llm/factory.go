package llm

import "fmt"

// NewFromEndpoint builds a concrete Client from a provider/model/endpoint
// tuple, the way the teacher's NewFromConfig resolves a provider group to a
// client -- minus the JSON group parsing and fallback-wrapping, which
// realconsole's own Config schema and Manager already cover.
func NewFromEndpoint(provider, model, endpoint, apiKey string) (Client, error) {
	switch provider {
	case "deepseek":
		return NewDeepseekClient(model, endpoint, apiKey)
	case "ollama":
		return NewOllamaClient(model, endpoint, nil)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
