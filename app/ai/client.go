// Package ai wraps the hosted language and image models used for recipes.
package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("ai provider not configured")
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

const extractSystemPrompt = `You turn free-form recipe text into JSON.
Reply with a single JSON object and nothing else, using exactly this shape:
{"title": string, "servings": integer, "ingredients": [{"name": string, "quantity": number, "unit": string, "notes": string}], "steps": [string]}
Rules:
- quantity is a number; convert fractions such as 1/2 to 0.5; use 0 when no amount is given.
- unit is a short lowercase unit such as g, kg, ml, l, tsp, tbsp, cup, piece; empty when there is none.
- notes holds preparation hints such as "finely chopped".
- steps are short imperative sentences in cooking order.
- Do not invent ingredients that are not in the text.`

// ExtractOptions tunes a recipe extraction.
type ExtractOptions struct {
	Servings int
	Language string
}

// GeneratedImage is a single image produced by the image model.
type GeneratedImage struct {
	PNG           []byte
	RevisedPrompt string
}

// Client calls the chat and image endpoints.
type Client struct {
	api        *openai.Client
	textModel  string
	imageModel string
	imageSize  string
}

// NewClient builds a client from config. It returns ErrNotConfigured when no key is set.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, ErrNotConfigured
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
	}, nil
}

// ExtractRecipe asks the language model for a structured version of text.
func (c *Client) ExtractRecipe(ctx context.Context, text string, opts ExtractOptions) (*models.Recipe, error) {
	user := text
	var hints []string
	if opts.Servings > 0 {
		hints = append(hints, fmt.Sprintf("Scale quantities to %d servings.", opts.Servings))
	}
	if opts.Language != "" {
		hints = append(hints, fmt.Sprintf("Write title, notes and steps in %s.", opts.Language))
	}
	if len(hints) > 0 {
		user = strings.Join(hints, " ") + "\n\n" + text
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.textModel,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	recipe, err := ParseRecipe(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if opts.Servings > 0 && recipe.Servings == 0 {
		recipe.Servings = opts.Servings
	}
	return recipe, nil
}

// GenerateImage renders prompt with the image model.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		Size:           c.imageSize,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResponse
	}

	png, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &GeneratedImage{PNG: png, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}

// ParseRecipe decodes the model's JSON reply and normalizes it.
func ParseRecipe(content string) (*models.Recipe, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	var recipe models.Recipe
	if err := json.Unmarshal([]byte(content), &recipe); err != nil {
		return nil, fmt.Errorf("decode recipe json: %w", err)
	}
	normalize(&recipe)
	return &recipe, nil
}

func normalize(r *models.Recipe) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Servings < 0 {
		r.Servings = 0
	}

	ingredients := make([]models.Ingredient, 0, len(r.Ingredients))
	for _, in := range r.Ingredients {
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" {
			continue
		}
		in.Unit = strings.ToLower(strings.TrimSpace(in.Unit))
		in.Notes = strings.TrimSpace(in.Notes)
		if in.Quantity < 0 {
			in.Quantity = 0
		}
		ingredients = append(ingredients, in)
	}
	r.Ingredients = ingredients

	steps := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	r.Steps = steps
}

const maxPromptIngredients = 8

// BuildImagePrompt describes the dish for the image model.
func BuildImagePrompt(title, description string, ingredients []string) string {
	var b strings.Builder
	b.WriteString("Professional food photography of ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString(".")
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString(" ")
		b.WriteString(d)
		if !strings.HasSuffix(d, ".") {
			b.WriteString(".")
		}
	}

	var shown []string
	for _, in := range ingredients {
		if in = strings.TrimSpace(in); in != "" {
			shown = append(shown, in)
		}
		if len(shown) == maxPromptIngredients {
			break
		}
	}
	if len(shown) > 0 {
		b.WriteString(" Visible ingredients: ")
		b.WriteString(strings.Join(shown, ", "))
		b.WriteString(".")
	}

	b.WriteString(" Plated on a neutral ceramic dish, soft natural side light, shallow depth of field, appetizing, no text or watermarks.")
	return b.String()
}
