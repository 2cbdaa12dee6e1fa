// Package openaicompat adapts an OpenAI-compatible chat completions
// endpoint to the chatmodel.Client contract, grounded on the teacher's
// llm/providers openai adapter (client construction, streaming goroutine
// pattern, error wrapping).
package openaicompat

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/flowagent/chatmodel"
	flowerrors "github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/tracing"
)

// tracer spans every round trip this adapter makes to the chat endpoint,
// raw or streaming.
var tracer = tracing.NewTracer("chatmodel")

// Config configures one Client. BaseURL empty means the public OpenAI API.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Client implements chatmodel.Client against any OpenAI-compatible
// /chat/completions endpoint (OpenAI itself, Azure-fronted deployments,
// vLLM, Ollama's OpenAI shim, …).
type Client struct {
	id     string
	client *openai.Client
	model  string
	cfg    Config
}

// New builds a Client from cfg. id is the resource id used when this client
// is docked onto an assistant node's "model" dock. APIKey is required; an
// empty BaseURL uses the upstream OpenAI endpoint.
func New(id string, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, flowerrors.New(flowerrors.CodeMissingAPIKey, "openaicompat: APIKey is required").
			WithComponent("chatmodel.openaicompat").WithOperation("New")
	}
	if cfg.Model == "" {
		return nil, flowerrors.New(flowerrors.CodeInvalidConfig, "openaicompat: Model is required").
			WithComponent("chatmodel.openaicompat").WithOperation("New")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		id:     id,
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		cfg:    cfg,
	}, nil
}

// ID implements engine.Resource so the client can be docked directly onto
// an assistant node's "model" dock.
func (c *Client) ID() string { return c.id }

func toOpenAIMessages(messages []flowtypes.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]openai.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				calls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			out[i].ToolCalls = calls
		}
	}
	return out
}

func toOpenAITools(toolDefs []chatmodel.ToolDef) []openai.Tool {
	if len(toolDefs) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(toolDefs))
	for i, t := range toolDefs {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []flowtypes.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]flowtypes.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = flowtypes.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		}
	}
	return out
}

// Raw implements chatmodel.Client.
func (c *Client) Raw(ctx context.Context, messages []flowtypes.Message, toolDefs []chatmodel.ToolDef) (*chatmodel.RawResponse, error) {
	ctx, span := tracer.StartChatSpan(ctx, c.model, false)
	var err error
	defer tracing.EndSpan(span, &err)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(toolDefs),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		err = flowerrors.Wrap(err, flowerrors.CodeAssistantStream, "openaicompat raw completion failed").
			WithComponent("chatmodel.openaicompat").WithOperation("Raw").WithContext("model", c.model)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err = flowerrors.New(flowerrors.CodeAssistantStream, "openaicompat: no choices in response").
			WithComponent("chatmodel.openaicompat").WithOperation("Raw").WithContext("model", c.model)
		return nil, err
	}

	out := &chatmodel.RawResponse{Model: resp.Model, Choices: make([]chatmodel.Choice, len(resp.Choices))}
	for i, ch := range resp.Choices {
		out.Choices[i] = chatmodel.Choice{
			FinishReason: string(ch.FinishReason),
			Message: chatmodel.RawMessage{
				Role:      ch.Message.Role,
				Content:   ch.Message.Content,
				ToolCalls: fromOpenAIToolCalls(ch.Message.ToolCalls),
			},
		}
	}
	return out, nil
}

// Stream implements chatmodel.Client. It forwards content deltas to onData
// and accumulates streamed tool-call deltas, flushing each finished call as
// a MetaEvent{Event: "toolcall"} before a trailing MetaEvent{Event: "done"}.
func (c *Client) Stream(ctx context.Context, messages []flowtypes.Message, toolDefs []chatmodel.ToolDef, onData func(string), onMeta func(chatmodel.MetaEvent)) error {
	ctx, span := tracer.StartChatSpan(ctx, c.model, true)
	var err error
	defer tracing.EndSpan(span, &err)

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(toolDefs),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		err = flowerrors.Wrap(err, flowerrors.CodeAssistantStream, "openaicompat stream request failed").
			WithComponent("chatmodel.openaicompat").WithOperation("Stream").WithContext("model", c.model)
		return err
	}
	defer stream.Close()

	pending := map[int]*flowtypes.ToolCall{}
	order := []int{}

	for {
		var resp openai.ChatCompletionStreamResponse
		resp, err = stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
				break
			}
			err = flowerrors.Wrap(err, flowerrors.CodeAssistantStream, "openaicompat stream recv failed").
				WithComponent("chatmodel.openaicompat").WithOperation("Stream").WithContext("model", c.model)
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			onData(delta.Content)
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := pending[idx]
			if !ok {
				call = &flowtypes.ToolCall{ID: tc.ID}
				pending[idx] = call
				order = append(order, idx)
			}
			if tc.Function.Name != "" {
				call.Name += tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				call.Arguments += tc.Function.Arguments
			}
		}
	}

	for _, idx := range order {
		call := pending[idx]
		onMeta(chatmodel.MetaEvent{Event: "toolcall", ToolCall: call})
	}
	onMeta(chatmodel.MetaEvent{Event: "done"})
	return nil
}

var _ chatmodel.Client = (*Client)(nil)
