package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Insights is the fixed-shape analytics result. The degraded form produced
// on provider failure carries only Summary.
type Insights struct {
	Summary         string   `json:"summary"`
	Opportunities   []string `json:"opportunities"`
	Bottlenecks     []string `json:"bottlenecks"`
	RevenueForecast string   `json:"revenueForecast"`
}

// Provider is the generative-AI capability consumed as a black box: utterance
// to structured tool calls, snapshot to insights.
type Provider interface {
	Interpret(ctx context.Context, utterance string) ([]Action, error)
	Analyze(ctx context.Context, snapshot json.RawMessage) (Insights, error)
}

// HTTPConfig configures the REST provider.
type HTTPConfig struct {
	BaseURL        string
	APIKey         string
	CommandModel   string
	AnalyticsModel string
	Timeout        time.Duration
}

// HTTPProvider calls the generative-language REST endpoint.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPProvider creates the REST provider with a bounded request timeout.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Wire shapes for the generateContent endpoint.

type generateRequest struct {
	Contents         []genContent `json:"contents"`
	Tools            []genTool    `json:"tools,omitempty"`
	GenerationConfig *genConfig   `json:"generationConfig,omitempty"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text         string           `json:"text,omitempty"`
	FunctionCall *genFunctionCall `json:"functionCall,omitempty"`
}

type genFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type genTool struct {
	FunctionDeclarations []genFunctionDecl `json:"functionDeclarations"`
}

type genFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type genConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content genContent `json:"content"`
	} `json:"candidates"`
}

// Declared tool vocabulary sent with every command interpretation request.
var functionDeclarations = []genFunctionDecl{
	{
		Name:        string(ActionNavigateTo),
		Description: "Navigate the dashboard to a tab.",
		Parameters:  json.RawMessage(`{"type":"OBJECT","properties":{"tab":{"type":"STRING","enum":["dashboard","crm","schedule","integrations","settings"]}},"required":["tab"]}`),
	},
	{
		Name:        string(ActionSetBusinessMode),
		Description: "Switch between Clinic and Laboratory mode.",
		Parameters:  json.RawMessage(`{"type":"OBJECT","properties":{"mode":{"type":"STRING","enum":["Clinic","Laboratory"]}},"required":["mode"]}`),
	},
	{
		Name:        string(ActionCreateAppointment),
		Description: "Create a dental appointment in the system.",
		Parameters:  json.RawMessage(`{"type":"OBJECT","properties":{"patientName":{"type":"STRING"},"dateTime":{"type":"STRING","description":"ISO format date time"},"type":{"type":"STRING","description":"Consultation, Surgery, or Cleaning"}},"required":["patientName","dateTime","type"]}`),
	},
	{
		Name:        string(ActionUpdateCRMStage),
		Description: "Move a CRM record to a pipeline stage.",
		Parameters:  json.RawMessage(`{"type":"OBJECT","properties":{"patientId":{"type":"STRING"},"newStage":{"type":"STRING"}},"required":["patientId","newStage"]}`),
	},
}

var analyticsSchema = json.RawMessage(`{"type":"OBJECT","properties":{"summary":{"type":"STRING"},"opportunities":{"type":"ARRAY","items":{"type":"STRING"}},"bottlenecks":{"type":"ARRAY","items":{"type":"STRING"}},"revenueForecast":{"type":"STRING"}},"required":["summary","opportunities","revenueForecast"]}`)

var proposalSchema = json.RawMessage(`{"type":"OBJECT","properties":{"title":{"type":"STRING"},"items":{"type":"ARRAY","items":{"type":"OBJECT","properties":{"description":{"type":"STRING"},"price":{"type":"NUMBER"}},"required":["description","price"]}}},"required":["title","items"]}`)

// Interpret sends the utterance with the declared tool vocabulary and decodes
// the returned function calls. Calls outside the vocabulary are skipped.
func (p *HTTPProvider) Interpret(ctx context.Context, utterance string) ([]Action, error) {
	req := generateRequest{
		Contents: []genContent{{
			Role:  "user",
			Parts: []genPart{{Text: "You are a senior dental practice manager. The system awaits an action for: " + utterance}},
		}},
		Tools: []genTool{{FunctionDeclarations: functionDeclarations}},
	}
	var resp generateResponse
	if err := p.post(ctx, p.cfg.CommandModel, req, &resp); err != nil {
		return nil, err
	}
	var actions []Action
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.FunctionCall == nil {
				continue
			}
			act, err := Decode(RawAction{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args})
			if err != nil {
				continue
			}
			actions = append(actions, act)
		}
	}
	return actions, nil
}

// Analyze sends the snapshot and decodes the JSON insights object.
func (p *HTTPProvider) Analyze(ctx context.Context, snapshot json.RawMessage) (Insights, error) {
	prompt := "Analyze this clinical/financial data and return strategic insights as JSON: " + string(snapshot)
	req := generateRequest{
		Contents: []genContent{{
			Role:  "user",
			Parts: []genPart{{Text: prompt}},
		}},
		GenerationConfig: &genConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   analyticsSchema,
		},
	}
	var resp generateResponse
	if err := p.post(ctx, p.cfg.AnalyticsModel, req, &resp); err != nil {
		return Insights{}, err
	}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text == "" {
				continue
			}
			var out Insights
			if err := json.Unmarshal([]byte(part.Text), &out); err != nil {
				return Insights{}, fmt.Errorf("decode insights: %w", err)
			}
			return out, nil
		}
	}
	return Insights{}, fmt.Errorf("empty provider response")
}

// SuggestProposal asks the provider to outline a priced proposal for a
// record entering the proposal stage. Returns title and line items only; the
// caller assigns identity, status and timestamps.
func (p *HTTPProvider) SuggestProposal(ctx context.Context, mode, patientName string, insights []string) (ProposalOutline, error) {
	prompt := fmt.Sprintf(
		"Outline a priced %s proposal for patient %q. Known context: %s. Return JSON.",
		mode, patientName, strings.Join(insights, "; "),
	)
	req := generateRequest{
		Contents: []genContent{{
			Role:  "user",
			Parts: []genPart{{Text: prompt}},
		}},
		GenerationConfig: &genConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   proposalSchema,
		},
	}
	var resp generateResponse
	if err := p.post(ctx, p.cfg.CommandModel, req, &resp); err != nil {
		return ProposalOutline{}, err
	}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text == "" {
				continue
			}
			var out ProposalOutline
			if err := json.Unmarshal([]byte(part.Text), &out); err != nil {
				return ProposalOutline{}, fmt.Errorf("decode proposal: %w", err)
			}
			return out, nil
		}
	}
	return ProposalOutline{}, fmt.Errorf("empty provider response")
}

// ProposalOutline is the provider's suggested proposal shape.
type ProposalOutline struct {
	Title string `json:"title"`
	Items []struct {
		Description string  `json:"description"`
		Price       float64 `json:"price"`
	} `json:"items"`
}

func (p *HTTPProvider) post(ctx context.Context, model string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", p.cfg.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
