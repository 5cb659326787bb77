package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validLetter = `{"overall_energy":"The stars are calm.","interview_energy":"Your words will land.","closing_message":"Go gently."}`

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}}},
	}
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: validLetter},
		{name: "surrounding whitespace", raw: "\n  " + validLetter + "\n"},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "not json", raw: "The stars are calm.", wantErr: true},
		{name: "missing section", raw: `{"overall_energy":"a","interview_energy":"b"}`, wantErr: true},
		{name: "blank section", raw: `{"overall_energy":"a","interview_energy":"  ","closing_message":"c"}`, wantErr: true},
		{name: "wrong type", raw: `{"overall_energy":1,"interview_energy":"b","closing_message":"c"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := ParseContent(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrGeneration)
				assert.Nil(t, content)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "The stars are calm.", content.OverallEnergy)
			assert.Equal(t, "Your words will land.", content.InterviewEnergy)
			assert.Equal(t, "Go gently.", content.ClosingMessage)
		})
	}
}

func TestOpenAIGeneratorBuildsRequest(t *testing.T) {
	fc := &fakeChat{resp: completion(validLetter)}
	g := &OpenAIGenerator{client: fc, model: DefaultModel}
	story := "interview tomorrow"

	content, err := g.Generate(context.Background(), Input{Name: "Minjun", BirthDate: "2024-05-10", Story: &story})
	require.NoError(t, err)
	assert.True(t, content.Complete())

	assert.Equal(t, DefaultModel, fc.got.Model)
	require.NotNil(t, fc.got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fc.got.ResponseFormat.Type)
	require.Len(t, fc.got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fc.got.Messages[0].Role)
	assert.Contains(t, fc.got.Messages[1].Content, "Minjun")
	assert.Contains(t, fc.got.Messages[1].Content, "2024-05-10")
	assert.Contains(t, fc.got.Messages[1].Content, "interview tomorrow")
}

func TestOpenAIGeneratorOmitsMissingStory(t *testing.T) {
	fc := &fakeChat{resp: completion(validLetter)}
	g := &OpenAIGenerator{client: fc, model: DefaultModel}

	_, err := g.Generate(context.Background(), Input{Name: "Minjun", BirthDate: "2024-05-10"})
	require.NoError(t, err)
	assert.NotContains(t, fc.got.Messages[1].Content, "Story:")
}

func TestOpenAIGeneratorFailures(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeChat
	}{
		{name: "transport error", fc: &fakeChat{err: errors.New("connection reset")}},
		{name: "no choices", fc: &fakeChat{resp: openai.ChatCompletionResponse{}}},
		{name: "empty content", fc: &fakeChat{resp: completion("")}},
		{name: "partial letter", fc: &fakeChat{resp: completion(`{"overall_energy":"a"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &OpenAIGenerator{client: tt.fc, model: DefaultModel}
			content, err := g.Generate(context.Background(), Input{Name: "Minjun", BirthDate: "2024-05-10"})
			assert.ErrorIs(t, err, ErrGeneration)
			assert.Nil(t, content)
		})
	}
}

func TestOpenAIGeneratorOverHTTP(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": validLetter},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk-test", srv.URL+"/v1", "")
	assert.Equal(t, DefaultModel, g.Model())

	content, err := g.Generate(context.Background(), Input{Name: "Minjun", BirthDate: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, "Go gently.", content.ClosingMessage)

	assert.Equal(t, DefaultModel, got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestNewGeneratorVariants(t *testing.T) {
	g, err := New("static", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, StaticModel, g.Model())

	_, err = New("openai", "", "", "")
	assert.Error(t, err)

	_, err = New("bard", "k", "", "")
	assert.Error(t, err)
}

func TestStaticGeneratorIsComplete(t *testing.T) {
	content, err := Static{}.Generate(context.Background(), Input{Name: "Minjun", BirthDate: "2024-05-10"})
	require.NoError(t, err)
	assert.True(t, content.Complete())
	assert.Contains(t, content.ClosingMessage, "Minjun")
}
