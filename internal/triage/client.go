package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fieldbox/internal/model"
	"fieldbox/internal/schema"

	"go.uber.org/zap"
)

// Input carries everything the triage collaborator needs to classify a
// request at intake.
type Input struct {
	Description  string
	Category     string
	PhotoURLs    []string
	Technicians  []*model.Technician
	UserLocation string
	CommonIssues []model.CommonIssue
}

// Analyzer is the external AI triage collaborator. It is invoked exactly
// once per request creation; a failure aborts creation wholesale.
type Analyzer interface {
	Analyze(ctx context.Context, input Input) (*model.Analysis, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint and parses
// the structured triage reply.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	httpc     *http.Client
	validator *schema.Validator
	log       *zap.Logger
}

func NewClient(baseURL, apiKey, modelName string, validator *schema.Validator, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		model:     modelName,
		httpc:     &http.Client{},
		validator: validator,
		log:       log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// analysisWire is the JSON shape the model is instructed to return.
type analysisWire struct {
	Summary                 string   `json:"summary"`
	Urgency                 string   `json:"urgency"`
	SuggestedTechnicianName string   `json:"suggestedTechnicianName"`
	SuggestionReason        string   `json:"suggestionReason"`
	IdentifiedIssue         *string  `json:"identifiedIssue,omitempty"`
	EstimatedCostRange      struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"estimatedCostRange"`
	PotentialParts []string `json:"potentialParts,omitempty"`
	SafetyWarnings []string `json:"safetyWarnings,omitempty"`
}

var analysisSchema = []byte(`{
	"type": "object",
	"required": ["summary", "urgency", "suggestedTechnicianName", "suggestionReason", "estimatedCostRange"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"urgency": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH", "EMERGENCY"]},
		"suggestedTechnicianName": {"type": "string"},
		"suggestionReason": {"type": "string"},
		"identifiedIssue": {"type": ["string", "null"]},
		"estimatedCostRange": {
			"type": "object",
			"required": ["min", "max"],
			"properties": {
				"min": {"type": "number", "minimum": 0},
				"max": {"type": "number", "minimum": 0}
			}
		},
		"potentialParts": {"type": "array", "items": {"type": "string"}},
		"safetyWarnings": {"type": "array", "items": {"type": "string"}}
	}
}`)

func (c *Client) Analyze(ctx context.Context, input Input) (*model.Analysis, error) {
	prompt := buildPrompt(input)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal triage request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build triage request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("triage call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("triage endpoint returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode triage response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("triage endpoint error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("triage endpoint returned no choices")
	}

	content := stripCodeFences(chat.Choices[0].Message.Content)

	var wire analysisWire
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse triage analysis: %w", err)
	}
	if err := c.validator.Validate(analysisSchema, wire); err != nil {
		return nil, fmt.Errorf("triage analysis rejected: %w", err)
	}

	analysis := &model.Analysis{
		Category:            input.Category,
		Urgency:             model.Urgency(wire.Urgency),
		Summary:             wire.Summary,
		SuggestedTechnician: wire.SuggestedTechnicianName,
		SuggestionReason:    wire.SuggestionReason,
		IdentifiedIssue:     wire.IdentifiedIssue,
		EstimatedCostRange:  model.CostRange{Min: wire.EstimatedCostRange.Min, Max: wire.EstimatedCostRange.Max},
		PotentialParts:      wire.PotentialParts,
		SafetyWarnings:      wire.SafetyWarnings,
	}

	c.log.Debug("triage analysis produced",
		zap.String("urgency", string(analysis.Urgency)),
		zap.String("suggested_technician", analysis.SuggestedTechnician))
	return analysis, nil
}

const systemPrompt = `You are a maintenance triage assistant. Reply with a single JSON object and nothing else. The object must have the keys: summary, urgency (one of LOW, MEDIUM, HIGH, EMERGENCY), suggestedTechnicianName, suggestionReason, identifiedIssue (string or null), estimatedCostRange ({"min": number, "max": number}), potentialParts (array of strings), safetyWarnings (array of strings).`

func buildPrompt(input Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service category: %s\n", input.Category)
	fmt.Fprintf(&b, "Problem description: %s\n", input.Description)
	if input.UserLocation != "" {
		fmt.Fprintf(&b, "Location: %s\n", input.UserLocation)
	}
	if len(input.PhotoURLs) > 0 {
		fmt.Fprintf(&b, "Photos: %s\n", strings.Join(input.PhotoURLs, ", "))
	}
	if len(input.CommonIssues) > 0 {
		b.WriteString("Known common issues for this category:\n")
		for _, issue := range input.CommonIssues {
			fmt.Fprintf(&b, "- %s (cost %.0f-%.0f, warranty %d days)\n",
				issue.Name, issue.MinCost, issue.MaxCost, issue.WarrantyDays)
		}
	}
	if len(input.Technicians) > 0 {
		b.WriteString("Available technicians:\n")
		for _, t := range input.Technicians {
			fmt.Fprintf(&b, "- %s (%s, region %s, rating %.1f)\n",
				t.Name, t.Specialization, t.Region, t.Rating)
		}
	}
	return b.String()
}

// stripCodeFences removes a surrounding ```json fence if the model added one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
