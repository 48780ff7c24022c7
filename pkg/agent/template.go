package agent

import "context"

// TemplateStep is one step of a structured workflow template: either a tool
// invocation (ToolName non-empty) or a free-form LLM analysis prompt
// (Prompt non-empty).
type TemplateStep struct {
	ToolName  string
	ArgsJSON  string
	Prompt    string
}

// Template is a named, pre-authored mixture of tool calls and LLM analysis
// steps that a Dispatcher can run in place of the general tool-calling loop
// when an intent names it explicitly.
type Template struct {
	Name  string
	Steps []TemplateStep
}

// TemplateEngine matches an intent name to a registered Template (§4.11 step
// 3b). Empty by default: until templates are registered, MatchIntent always
// declines and the Dispatcher falls through to the tool-calling loop.
type TemplateEngine struct {
	byIntent map[string]Template
}

// NewTemplateEngine builds an empty engine.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{byIntent: make(map[string]Template)}
}

// Register binds a Template to the intent name that should trigger it.
func (e *TemplateEngine) Register(intentName string, tmpl Template) {
	e.byIntent[intentName] = tmpl
}

// MatchIntent looks up a template for intentName.
func (e *TemplateEngine) MatchIntent(intentName string) (Template, bool) {
	t, ok := e.byIntent[intentName]
	return t, ok
}

// Run executes a template's steps in order, concatenating each step's textual
// outcome. A tool step invokes run through toolRunner; an analysis step
// invokes chat through chatFn with the accumulated transcript so far appended
// as context.
func (e *TemplateEngine) Run(ctx context.Context, tmpl Template, toolRunner func(ctx context.Context, name, argsJSON string) (string, error), chatFn func(ctx context.Context, prompt string) (string, error)) (string, error) {
	var transcript string
	for _, step := range tmpl.Steps {
		switch {
		case step.ToolName != "":
			out, err := toolRunner(ctx, step.ToolName, step.ArgsJSON)
			if err != nil {
				return transcript, err
			}
			transcript += out + "\n"
		case step.Prompt != "":
			out, err := chatFn(ctx, step.Prompt+"\n\n"+transcript)
			if err != nil {
				return transcript, err
			}
			transcript += out + "\n"
		}
	}
	return transcript, nil
}
