package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the OpenAI SDK to generate the spoken script for the
// escalation voice call.
type Client struct {
	apiKey string
	client *openai.Client
	model  openai.ChatModel
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// New returns an OpenAI client when apiKey is provided, otherwise a client
// that falls back to a static script.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		apiKey: apiKey,
		client: &client,
		model:  openai.ChatModelGPT4oMini,
	}
}

// CallScript produces a short spoken message telling the contact that the
// user missed the named reminder. Without an API key a static script is
// returned, so the escalation call never depends on the model being up.
func (c *Client) CallScript(ctx context.Context, reminderName string) (string, error) {
	if strings.TrimSpace(reminderName) == "" {
		return "", fmt.Errorf("reminder name cannot be empty")
	}
	if c.client == nil {
		return staticScript(reminderName), nil
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You write one short, calm sentence to be read aloud on a phone call, telling the listener that a patient did not respond to a health reminder. No markup, no emoji."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf("The missed reminder is: %s", reminderName)),
					},
				},
			},
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(60),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return staticScript(reminderName), err
	}
	if len(resp.Choices) == 0 {
		return staticScript(reminderName), fmt.Errorf("no completion received")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func staticScript(reminderName string) string {
	return fmt.Sprintf("This is Medora. A reminder named %s was not acknowledged. Please check in with the patient.", reminderName)
}
