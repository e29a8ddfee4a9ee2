package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
	"github.com/mkorobkov/gpt-thread-bot/pkg/tools"
)

type llmCall struct {
	model     string
	messages  []domain.ChatMessage
	functions []domain.FunctionSchema
}

type fakeLLM struct {
	responses []*domain.Completion
	err       error
	calls     []llmCall
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, model string, messages []domain.ChatMessage, functions []domain.FunctionSchema) (*domain.Completion, error) {
	f.calls = append(f.calls, llmCall{model: model, messages: messages, functions: functions})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted completion left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type toolInvocation struct {
	name      string
	arguments string
}

type fakeTools struct {
	schemas     []domain.FunctionSchema
	response    string
	err         error
	invocations []toolInvocation
}

func (f *fakeTools) Schemas() []domain.FunctionSchema { return f.schemas }

func (f *fakeTools) Invoke(_ context.Context, name, arguments string) (string, error) {
	f.invocations = append(f.invocations, toolInvocation{name: name, arguments: arguments})
	return f.response, f.err
}

type fakeThreadRepo struct {
	thread  *domain.Thread
	created []domain.Thread
}

func (f *fakeThreadRepo) Create(_ context.Context, thread domain.Thread) (*domain.Thread, error) {
	f.created = append(f.created, thread)
	return &thread, nil
}

func (f *fakeThreadRepo) FetchOne(_ context.Context, threadID int64) (*domain.Thread, error) {
	if f.thread == nil || f.thread.ID != threadID {
		return nil, domain.ErrNotFound
	}
	t := *f.thread
	return &t, nil
}

func (f *fakeThreadRepo) PartialUpdate(_ context.Context, threadID int64, update domain.ThreadUpdate) (*domain.Thread, error) {
	if f.thread == nil || f.thread.ID != threadID {
		return nil, domain.ErrNotFound
	}
	if update.Model != nil {
		f.thread.Model = *update.Model
	}
	if update.ContextLength != nil {
		f.thread.ContextLength = *update.ContextLength
	}
	t := *f.thread
	return &t, nil
}

type fakeMessageRepo struct {
	stored  []domain.ThreadMessage
	created []domain.ThreadMessage
}

func (f *fakeMessageRepo) Create(_ context.Context, msg domain.ThreadMessage) (*domain.ThreadMessage, error) {
	f.created = append(f.created, msg)
	return &msg, nil
}

func (f *fakeMessageRepo) FetchMany(_ context.Context, _ int64, _ domain.ThreadMessageFilter) ([]domain.ThreadMessage, error) {
	return f.stored, nil
}

type fakeAuth struct{ allowed bool }

func (f fakeAuth) IsAuthorized(int64) bool { return f.allowed }

type fakeIdentity struct {
	id    int64
	name  string
	ready bool
}

func (f fakeIdentity) Self() (int64, string, bool) { return f.id, f.name, f.ready }

func stopCompletion(text string, promptTokens, completionTokens int) *domain.Completion {
	return &domain.Completion{
		Message:          domain.ChatMessage{Role: domain.MessageRoleAssistant, Content: text},
		FinishReason:     domain.FinishReasonStop,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}
}

func inbound() domain.InboundMessage {
	return domain.InboundMessage{
		ThreadID:     42,
		AuthorID:     7,
		AuthorName:   "alice",
		Text:         "hello there",
		AddressesBot: true,
	}
}

func TestSendMessageToThreadStopPath(t *testing.T) {
	llm := &fakeLLM{responses: []*domain.Completion{stopCompletion("hi alice", 30, 12)}}
	toolbox := &fakeTools{schemas: []domain.FunctionSchema{{Name: "get_weather_for_location"}}}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, toolbox, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	result, err := svc.SendMessageToThread(context.Background(), inbound())
	if err != nil {
		t.Fatalf("SendMessageToThread() error = %v", err)
	}

	if len(llm.calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(llm.calls))
	}
	if len(llm.calls[0].functions) != 1 {
		t.Errorf("first call functions = %d, want the advertised schema", len(llm.calls[0].functions))
	}
	if len(toolbox.invocations) != 0 {
		t.Errorf("tool invocations = %d, want 0", len(toolbox.invocations))
	}

	if got, want := result.ResponseMessages, []string{"hi alice"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("ResponseMessages = %v, want %v", got, want)
	}
	if result.InputTokens != 30 || result.OutputTokens != 12 {
		t.Errorf("tokens = %d/%d, want 30/12", result.InputTokens, result.OutputTokens)
	}

	if len(messageRepo.created) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(messageRepo.created))
	}
	user, assistant := messageRepo.created[0], messageRepo.created[1]
	if user.Role != domain.MessageRoleUser || user.Content != "alice: hello there" || user.TokensUsed != 30 {
		t.Errorf("user record = %+v", user)
	}
	if assistant.Role != domain.MessageRoleAssistant || assistant.Content != "hi alice" || assistant.TokensUsed != 12 || assistant.UserID != 99 {
		t.Errorf("assistant record = %+v", assistant)
	}
}

func TestSendMessageToThreadFunctionCallPath(t *testing.T) {
	llm := &fakeLLM{responses: []*domain.Completion{
		{
			Message: domain.ChatMessage{
				Role:         domain.MessageRoleAssistant,
				FunctionCall: &domain.FunctionCall{Name: "get_weather_for_location", Arguments: `{"location":"Paris"}`},
			},
			FinishReason: domain.FinishReasonFunctionCall,
		},
		stopCompletion("It is 21.0°C in Paris.", 80, 25),
	}}
	toolbox := &fakeTools{
		schemas:  []domain.FunctionSchema{{Name: "get_weather_for_location"}},
		response: "21.0°C / 69.8°F",
	}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, toolbox, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	result, err := svc.SendMessageToThread(context.Background(), inbound())
	if err != nil {
		t.Fatalf("SendMessageToThread() error = %v", err)
	}

	if len(toolbox.invocations) != 1 {
		t.Fatalf("tool invocations = %d, want 1", len(toolbox.invocations))
	}
	if inv := toolbox.invocations[0]; inv.name != "get_weather_for_location" || inv.arguments != `{"location":"Paris"}` {
		t.Errorf("invocation = %+v", inv)
	}

	if len(llm.calls) != 2 {
		t.Fatalf("llm calls = %d, want 2", len(llm.calls))
	}
	second := llm.calls[1]
	if second.functions != nil {
		t.Errorf("follow-up call carried schemas; a second round-trip must be impossible")
	}
	last := second.messages[len(second.messages)-1]
	if last.Role != domain.MessageRoleFunction || last.Name != "get_weather_for_location" || last.ContentText() != "21.0°C / 69.8°F" {
		t.Errorf("trailing message of follow-up = %+v, want the tool result", last)
	}

	if got := result.ResponseMessages[0]; got != "It is 21.0°C in Paris." {
		t.Errorf("response = %q", got)
	}
	if result.InputTokens != 80 || result.OutputTokens != 25 {
		t.Errorf("tokens = %d/%d, want the follow-up completion's usage", result.InputTokens, result.OutputTokens)
	}
	if len(messageRepo.created) != 2 {
		t.Errorf("persisted messages = %d, want 2", len(messageRepo.created))
	}
}

func TestSendMessageToThreadUnadvertisedTool(t *testing.T) {
	llm := &fakeLLM{responses: []*domain.Completion{{
		Message: domain.ChatMessage{
			Role:         domain.MessageRoleAssistant,
			FunctionCall: &domain.FunctionCall{Name: "rm_rf", Arguments: "{}"},
		},
		FinishReason: domain.FinishReasonFunctionCall,
	}}}
	toolbox := &fakeTools{err: tools.ErrNotRegistered}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, toolbox, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	_, err := svc.SendMessageToThread(context.Background(), inbound())
	if err == nil {
		t.Fatal("SendMessageToThread() error = nil, want failure")
	}
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		t.Errorf("error = %v, want a plain defect, not a user-facing code", err)
	}
	if len(messageRepo.created) != 0 {
		t.Errorf("persisted messages = %d, want 0 after an aborted turn", len(messageRepo.created))
	}
}

func TestSendMessageToThreadToolFailureSurfacesToUser(t *testing.T) {
	llm := &fakeLLM{responses: []*domain.Completion{{
		Message: domain.ChatMessage{
			Role:         domain.MessageRoleAssistant,
			FunctionCall: &domain.FunctionCall{Name: "get_weather_for_location", Arguments: `{"location":"Paris"}`},
		},
		FinishReason: domain.FinishReasonFunctionCall,
	}}}
	toolbox := &fakeTools{err: errors.New("geocoding timed out")}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, toolbox, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	_, err := svc.SendMessageToThread(context.Background(), inbound())
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.Code != domain.ErrorCodeUnexpectedError {
		t.Fatalf("error = %v, want unexpected_error", err)
	}
	if !strings.Contains(domainErr.Messages[0], "geocoding timed out") {
		t.Errorf("message %q does not carry the tool failure", domainErr.Messages[0])
	}
	if len(messageRepo.created) != 0 {
		t.Errorf("persisted messages = %d, want 0", len(messageRepo.created))
	}
}

func TestSendMessageToThreadGates(t *testing.T) {
	tests := []struct {
		name     string
		msg      func() domain.InboundMessage
		identity fakeIdentity
		auth     fakeAuth
		thread   *domain.Thread
		wantCode domain.ErrorCode
	}{
		{
			name:     "not ready before identity is established",
			msg:      inbound,
			identity: fakeIdentity{ready: false},
			auth:     fakeAuth{allowed: true},
			thread:   &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20},
			wantCode: domain.ErrorCodeNotReady,
		},
		{
			name: "own message is skipped",
			msg: func() domain.InboundMessage {
				m := inbound()
				m.FromSelf = true
				return m
			},
			identity: fakeIdentity{id: 99, ready: true},
			auth:     fakeAuth{allowed: true},
			thread:   &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20},
			wantCode: domain.ErrorCodeSkip,
		},
		{
			name: "message from the bot's own account is skipped",
			msg: func() domain.InboundMessage {
				m := inbound()
				m.AuthorID = 99
				return m
			},
			identity: fakeIdentity{id: 99, ready: true},
			auth:     fakeAuth{allowed: true},
			thread:   &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20},
			wantCode: domain.ErrorCodeSkip,
		},
		{
			name: "message not addressing the bot is skipped",
			msg: func() domain.InboundMessage {
				m := inbound()
				m.AddressesBot = false
				return m
			},
			identity: fakeIdentity{id: 99, ready: true},
			auth:     fakeAuth{allowed: true},
			thread:   &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20},
			wantCode: domain.ErrorCodeSkip,
		},
		{
			name:     "unknown user is rejected",
			msg:      inbound,
			identity: fakeIdentity{id: 99, ready: true},
			auth:     fakeAuth{allowed: false},
			thread:   &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20},
			wantCode: domain.ErrorCodeUnauthorized,
		},
		{
			name:     "untracked thread",
			msg:      inbound,
			identity: fakeIdentity{id: 99, ready: true},
			auth:     fakeAuth{allowed: true},
			thread:   nil,
			wantCode: domain.ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{}
			svc := NewConversationService(llm, &fakeTools{}, &fakeThreadRepo{thread: tt.thread}, &fakeMessageRepo{}, tt.auth, tt.identity)

			_, err := svc.SendMessageToThread(context.Background(), tt.msg())

			var domainErr *domain.Error
			if !errors.As(err, &domainErr) || domainErr.Code != tt.wantCode {
				t.Fatalf("error = %v, want code %q", err, tt.wantCode)
			}
			if len(llm.calls) != 0 {
				t.Errorf("llm calls = %d, want 0 for a gated event", len(llm.calls))
			}
		})
	}
}

func TestSendMessageToThreadTrailingContextWindow(t *testing.T) {
	stored := []domain.ThreadMessage{
		{Role: domain.MessageRoleUser, Content: "one"},
		{Role: domain.MessageRoleUser, Content: "two"},
		{Role: domain.MessageRoleAssistant, Content: "three"},
		{Role: domain.MessageRoleFunction, FunctionName: "get_weather_for_location", Content: "21.0°C / 69.8°F"},
		{Role: domain.MessageRoleAssistant, Content: "five"},
	}
	llm := &fakeLLM{responses: []*domain.Completion{stopCompletion("ok", 1, 1)}}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 2}}

	svc := NewConversationService(llm, &fakeTools{}, threadRepo, &fakeMessageRepo{stored: stored}, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	if _, err := svc.SendMessageToThread(context.Background(), inbound()); err != nil {
		t.Fatalf("SendMessageToThread() error = %v", err)
	}

	msgs := llm.calls[0].messages
	if len(msgs) != 3 {
		t.Fatalf("completion messages = %d, want 2 trailing + 1 new", len(msgs))
	}
	if msgs[0].Role != domain.MessageRoleFunction || msgs[0].Name != "get_weather_for_location" {
		t.Errorf("replayed function message = %+v", msgs[0])
	}
	if msgs[0].ContentText() != "21.0°C / 69.8°F" {
		t.Errorf("function content = %q, want plain string content", msgs[0].ContentText())
	}
	parts, ok := msgs[1].Content.([]domain.Content)
	if !ok || len(parts) != 1 || parts[0].Text != "five" {
		t.Errorf("replayed assistant message content = %+v, want a single text part", msgs[1].Content)
	}
}

func TestSendMessageToThreadTransportFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("giving up after 6 attempt(s)")}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, &fakeTools{}, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	_, err := svc.SendMessageToThread(context.Background(), inbound())

	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.Code != domain.ErrorCodeUnexpectedError {
		t.Fatalf("error = %v, want unexpected_error", err)
	}
	if !strings.Contains(domainErr.Messages[0], "giving up after 6 attempt(s)") {
		t.Errorf("message %q does not carry the transport failure", domainErr.Messages[0])
	}
	if len(messageRepo.created) != 0 {
		t.Errorf("persisted messages = %d, want 0", len(messageRepo.created))
	}
}

func TestSendMessageToThreadUnhandledFinishReason(t *testing.T) {
	llm := &fakeLLM{responses: []*domain.Completion{{
		Message:      domain.ChatMessage{Role: domain.MessageRoleAssistant, Content: "truncated"},
		FinishReason: "length",
	}}}
	threadRepo := &fakeThreadRepo{thread: &domain.Thread{ID: 42, Model: "gpt-4", ContextLength: 20}}
	messageRepo := &fakeMessageRepo{}

	svc := NewConversationService(llm, &fakeTools{}, threadRepo, messageRepo, fakeAuth{allowed: true}, fakeIdentity{id: 99, ready: true})

	_, err := svc.SendMessageToThread(context.Background(), inbound())
	if err == nil || !strings.Contains(err.Error(), "unhandled finish reason") {
		t.Fatalf("error = %v, want an unhandled finish reason defect", err)
	}
	if len(messageRepo.created) != 0 {
		t.Errorf("persisted messages = %d, want 0", len(messageRepo.created))
	}
}
