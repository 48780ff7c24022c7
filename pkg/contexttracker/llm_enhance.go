package contexttracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"realconsole/pkg/llm"
)

// RelevanceScore pairs an entity with how relevant it is to the current
// user input, per AnalyzeContextRelevance.
type RelevanceScore struct {
	Entity    Entity
	Relevance float32
}

// ExtractEntitiesWithLLM asks client to recognize entities regex can't
// reach: abstract concepts, task descriptions, anything context-dependent.
func (t *Tracker) ExtractEntitiesWithLLM(ctx context.Context, client llm.Client, userInput string) ([]Entity, error) {
	prompt := fmt.Sprintf(`Extract key entities from the user input below. Reply with a JSON array only.

User input: %q

Recognize these entity types: file, directory, command, concept (abstract,
e.g. "memory leak", "slow query"), url, number.

Reply format:
[{"type": "file", "value": "src/main.go", "confidence": 0.9}, {"type": "concept", "value": "memory leak", "confidence": 0.8}]

Reply with only the JSON array, no other text.`, userInput)

	text, err := client.Chat(ctx, []llm.Message{llm.NewUserMessage(prompt)})
	if err != nil {
		return nil, err
	}
	return parseLLMEntities(extractJSONArray(text), userInput)
}

type llmEntity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float32 `json:"confidence"`
}

func parseLLMEntities(jsonStr, context string) ([]Entity, error) {
	var raw []llmEntity
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse entity response: %w", err)
	}

	entities := make([]Entity, 0, len(raw))
	for _, r := range raw {
		confidence := r.Confidence
		if confidence == 0 {
			confidence = 0.5
		}

		var e Entity
		switch r.Type {
		case "file":
			e = entityWithPath(EntityFile, r.Value, context, confidence)
		case "directory", "dir":
			e = entityWithPath(EntityDirectory, r.Value, context, confidence)
		case "command", "cmd":
			e = NewEntity(EntityCommand, context, confidence)
			e.Command = r.Value
		case "concept":
			e = NewEntity(EntityConcept, context, confidence)
			e.Concept = r.Value
		case "url":
			e = NewEntity(EntityURL, context, confidence)
			e.URL = r.Value
		case "number":
			f, err := parseFloatLoose(r.Value)
			if err != nil {
				continue
			}
			e = NewEntity(EntityNumber, context, confidence)
			e.Number = f
		default:
			e = NewEntity(EntityConcept, context, confidence)
			e.Concept = r.Value
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// AnalyzeContextRelevance scores every cached entity's relevance to
// userInput, keeping only those client reports above 0.5.
func (t *Tracker) AnalyzeContextRelevance(ctx context.Context, client llm.Client, userInput string) ([]RelevanceScore, error) {
	entities := t.GetAllEntities()
	if len(entities) == 0 {
		return nil, nil
	}

	var listing strings.Builder
	for _, e := range entities {
		fmt.Fprintf(&listing, "- %s (%s)\n", e.DisplayName(), e.TypeName())
	}

	prompt := fmt.Sprintf(`Score how relevant each historical entity is to the user's current input.

User input: %q

Historical entities:
%s
Reply with a JSON array, entities with relevance > 0.5 only:
[{"entity": "src/main.go", "relevance": 0.9}]

Reply with only the JSON array, no other text.`, userInput, listing.String())

	text, err := client.Chat(ctx, []llm.Message{llm.NewUserMessage(prompt)})
	if err != nil {
		return nil, err
	}

	type scored struct {
		Entity    string  `json:"entity"`
		Relevance float32 `json:"relevance"`
	}
	var raw []scored
	if err := json.Unmarshal([]byte(extractJSONArray(text)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse relevance response: %w", err)
	}

	byName := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byName[e.DisplayName()] = e
	}

	var results []RelevanceScore
	for _, r := range raw {
		if e, ok := byName[r.Entity]; ok {
			results = append(results, RelevanceScore{Entity: e, Relevance: r.Relevance})
		}
	}
	return results, nil
}

// ResolveReferenceWithLLM resolves a complex, non-formulaic pronoun
// reference by asking client to pick among the 10 most recent entities.
func (t *Tracker) ResolveReferenceWithLLM(ctx context.Context, client llm.Client, userInput string) (Entity, bool, error) {
	entities := t.GetAllEntities()
	if len(entities) == 0 {
		return Entity{}, false, nil
	}
	if len(entities) > 10 {
		entities = entities[len(entities)-10:]
	}

	var listing strings.Builder
	for _, e := range entities {
		fmt.Fprintf(&listing, "- %s (%s): %s\n", e.DisplayName(), e.TypeName(), e.Context)
	}

	prompt := fmt.Sprintf(`The user input contains a pronoun or vague reference. Identify which entity it refers to, using the conversation history below.

User input: %q

Recently mentioned entities:
%s
Reply format:
{"pronoun": "it", "refers_to": "src/main.go", "confidence": 0.9}

If you cannot tell, reply: {"refers_to": null}

Reply with only the JSON object, no other text.`, userInput, listing.String())

	text, err := client.Chat(ctx, []llm.Message{llm.NewUserMessage(prompt)})
	if err != nil {
		return Entity{}, false, err
	}

	var result struct {
		RefersTo *string `json:"refers_to"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &result); err != nil {
		return Entity{}, false, fmt.Errorf("failed to parse reference response: %w", err)
	}
	if result.RefersTo == nil {
		return Entity{}, false, nil
	}

	e, ok := t.recentEntities.Get(*result.RefersTo)
	if !ok {
		return Entity{}, false, nil
	}
	e.updateMention(userInput)
	t.recentEntities.Add(*result.RefersTo, e)
	return e, true, nil
}

func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func parseFloatLoose(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
