// Package openai provides an LLMClient implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
)

const extractionPrompt = `You are a fact extractor for a personal memory assistant. Extract facts about named entities (people, places, projects, topics) from the given text.

For each fact, identify:
- entity_name: Who/what the fact is about
- entity_kind: person, place, project, topic, other
- predicate: The property or relationship (use one of: %s)
- object: The value or target
- object_name: If the object is itself a named entity, its name (optional)
- sensitivity: public, normal, sensitive, private (default normal)
- valid_from: ISO date if the fact starts at a known date (optional)
- confidence: How confident you are (0.0-1.0)

Return ONLY a valid JSON array, no other text.

Example:
Input: "Marcus started at Anthropic last month. He knows Sara from college."
Output: [
  {"entity_name": "Marcus", "entity_kind": "person", "predicate": "works_at", "object": "Anthropic", "confidence": 0.95},
  {"entity_name": "Marcus", "entity_kind": "person", "predicate": "knows", "object": "Sara", "object_name": "Sara", "confidence": 0.9}
]`

const classificationPrompt = `You classify how important an entity is to the user of a personal memory assistant.

Entity: %s (%s)
Summary: %s
Known facts:
%s

Choose exactly one tier:
- critical: the user themselves, immediate family, life partner
- high: close friends, pets, the user's employer, active major projects
- medium: regular acquaintances, ongoing interests
- low: peripheral people and topics
- trivial: one-off mentions unlikely to matter again

Return ONLY a JSON object, no other text:
{"tier": "medium", "score": 0.5, "rationale": "one short sentence"}`

// Client implements the LLMClient interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// rawCandidate mirrors the JSON the model returns. Object may arrive as a
// string or number, so it is decoded loosely and normalized.
type rawCandidate struct {
	EntityName  string  `json:"entity_name"`
	EntityKind  string  `json:"entity_kind"`
	Predicate   string  `json:"predicate"`
	Object      any     `json:"object"`
	ObjectName  string  `json:"object_name"`
	Sensitivity string  `json:"sensitivity"`
	ValidFrom   string  `json:"valid_from"`
	Confidence  float64 `json:"confidence"`
}

// ExtractCandidates turns raw text into typed candidate facts.
func (c *Client) ExtractCandidates(ctx context.Context, text string, validPredicates []string) ([]entities.Candidate, error) {
	prompt := fmt.Sprintf(extractionPrompt, strings.Join(validPredicates, ", "))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	var raw []rawCandidate
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing candidates JSON: %w (response: %s)", err, content)
	}

	candidates := make([]entities.Candidate, 0, len(raw))
	for _, rc := range raw {
		candidates = append(candidates, entities.Candidate{
			EntityName:  rc.EntityName,
			EntityKind:  entities.EntityKind(rc.EntityKind),
			Predicate:   rc.Predicate,
			Object:      objectToString(rc.Object),
			ObjectName:  rc.ObjectName,
			Sensitivity: entities.Sensitivity(rc.Sensitivity),
			ValidFrom:   rc.ValidFrom,
			Confidence:  rc.Confidence,
		})
	}

	return candidates, nil
}

// ClassifyImportance asks the model to place an entity into one of the five
// importance tiers.
func (c *Client) ClassifyImportance(ctx context.Context, entity *entities.Entity, knownFacts []string) (*ports.Classification, error) {
	factList := "(none)"
	if len(knownFacts) > 0 {
		factList = "- " + strings.Join(knownFacts, "\n- ")
	}
	prompt := fmt.Sprintf(classificationPrompt, entity.Name, entity.Kind, entity.Summary, factList)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	var result ports.Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parsing classification JSON: %w (response: %s)", err, content)
	}

	return &result, nil
}

// cleanJSONResponse strips markdown code fences the model sometimes adds.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// objectToString normalizes a loosely-typed object value into a string.
func objectToString(obj any) string {
	switch v := obj.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
