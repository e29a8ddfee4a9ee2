package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
)

func echoHandler(ctx context.Context, args map[string]any) (string, error) {
	s, _ := args["text"].(string)
	return s, nil
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
		params      []Param
		handler     Handler
		wantErr     bool
	}{
		{
			name:        "valid tool",
			toolName:    "echo",
			description: "Echo the given text.",
			params:      []Param{{Name: "text", Type: jsonschema.String, Description: "Text to echo", Required: true}},
			handler:     echoHandler,
		},
		{
			name:        "parameter without description",
			toolName:    "bad_param",
			description: "A tool.",
			params:      []Param{{Name: "text", Type: jsonschema.String}},
			handler:     echoHandler,
			wantErr:     true,
		},
		{
			name:        "unsupported parameter type",
			toolName:    "bad_type",
			description: "A tool.",
			params:      []Param{{Name: "flag", Type: jsonschema.Boolean, Description: "A flag"}},
			handler:     echoHandler,
			wantErr:     true,
		},
		{
			name:        "integer parameter allowed",
			toolName:    "count_things",
			description: "Count things.",
			params:      []Param{{Name: "count", Type: jsonschema.Integer, Description: "How many", Required: true}},
			handler:     echoHandler,
		},
		{
			name:     "missing description",
			toolName: "no_description",
			handler:  echoHandler,
			wantErr:  true,
		},
		{
			name:        "nil handler",
			toolName:    "no_handler",
			description: "A tool.",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.toolName, tt.description, tt.params, tt.handler)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", "Echo.", nil, echoHandler); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("echo", "Echo again.", nil, echoHandler); err == nil {
		t.Fatal("expected error registering duplicate name")
	}
}

func TestSchemasKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := r.Register(name, "A tool.", nil, echoHandler); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}

	schemas := r.Schemas()
	if len(schemas) != 3 {
		t.Fatalf("got %d schemas, want 3", len(schemas))
	}
	for i, want := range []string{"zulu", "alpha", "mike"} {
		if schemas[i].Name != want {
			t.Errorf("schemas[%d].Name = %q, want %q", i, schemas[i].Name, want)
		}
	}
}

func TestInvoke(t *testing.T) {
	r := NewRegistry()
	err := r.Register("echo", "Echo the given text.", []Param{
		{Name: "text", Type: jsonschema.String, Description: "Text to echo", Required: true},
	}, echoHandler)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Invoke(context.Background(), "echo", `{"text": "hello"}`)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %q, want %q", got, "hello")
	}

	if _, err := r.Invoke(context.Background(), "echo", `{}`); err == nil {
		t.Error("expected error for missing required argument")
	}

	if _, err := r.Invoke(context.Background(), "echo", `not json`); err == nil {
		t.Error("expected error for malformed arguments")
	}

	_, err = r.Invoke(context.Background(), "unknown_tool", `{}`)
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("err = %v, want ErrNotRegistered", err)
	}
}
