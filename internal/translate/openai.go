package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Translator using the official openai-go SDK
// (chat completions).
type OpenAI struct {
	model   string
	timeout time.Duration
	opts    []option.RequestOption
}

func NewOpenAI(apiKey, model string, timeout time.Duration) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key missing; provide translate.api_key")
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{
		model:   model,
		timeout: timeout,
		opts:    []option.RequestOption{option.WithAPIKey(apiKey)},
	}, nil
}

func (o *OpenAI) Translate(ctx context.Context, text, sourceLang, destLang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client := openai.NewClient(o.opts...)

	system := fmt.Sprintf(
		"You are a translation engine. Translate the user's message from %s to %s. "+
			"Preserve line breaks and emoji. Reply with the translation only.",
		sourceLang, destLang)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
