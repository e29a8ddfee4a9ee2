package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
)

// ErrNotRegistered marks a model-requested tool name the registry never
// advertised. That is a contract break, not a user-recoverable condition.
var ErrNotRegistered = errors.New("tool not registered")

// Handler executes one tool call with the parsed model-supplied arguments.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Param declares one tool parameter. Every parameter must carry a
// human-readable description; the model sees nothing else.
type Param struct {
	Name        string
	Type        jsonschema.DataType
	Description string
	Required    bool
}

var supportedParamTypes = map[jsonschema.DataType]struct{}{
	jsonschema.String:  {},
	jsonschema.Integer: {},
}

type entry struct {
	schema  domain.FunctionSchema
	handler Handler
}

// Registry maps tool names to handlers and their declared schemas.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	names   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register validates the declaration and inserts the tool. Failures here are
// programmer mistakes and should abort startup.
func (r *Registry) Register(name, description string, params []Param, handler Handler) error {
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if description == "" {
		return fmt.Errorf("tool %q has no description", name)
	}
	if handler == nil {
		return fmt.Errorf("tool %q has a nil handler", name)
	}

	properties := make(map[string]jsonschema.Definition, len(params))
	var required []string
	for _, p := range params {
		if p.Description == "" {
			return fmt.Errorf("tool %q: parameter %q lacks a description", name, p.Name)
		}
		if _, ok := supportedParamTypes[p.Type]; !ok {
			return fmt.Errorf("tool %q: parameter %q has unsupported type %q", name, p.Name, p.Type)
		}
		properties[p.Name] = jsonschema.Definition{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.entries[name] = entry{
		schema: domain.FunctionSchema{
			Name:        name,
			Description: description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: properties,
				Required:   required,
			},
		},
		handler: handler,
	}
	r.names = append(r.names, name)
	return nil
}

// Schemas returns all registered descriptors in registration order, for
// inclusion in completion requests.
func (r *Registry) Schemas() []domain.FunctionSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.FunctionSchema, 0, len(r.names))
	for _, name := range r.names {
		schemas = append(schemas, r.entries[name].schema)
	}
	return schemas
}

// Invoke parses the JSON-encoded arguments and runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	args := make(map[string]any)
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("parsing arguments for tool %q: %w", name, err)
		}
	}

	for _, param := range e.schema.Parameters.Required {
		if _, ok := args[param]; !ok {
			return "", fmt.Errorf("tool %q: missing required argument %q", name, param)
		}
	}

	slog.DebugContext(ctx, "Invoking tool", "name", name, "args", args)

	return e.handler(ctx, args)
}
