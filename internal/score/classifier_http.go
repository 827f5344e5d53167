package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const classifierSystemPrompt = `You are a website change analyzer. Analyze the provided website change and:
1. Assign a significance score (1-10)
2. Provide a brief explanation of the score
3. Categorize the impact (Visual, Content, Structure, or Technical)
4. Assess business relevance

Return the analysis in JSON format with these keys:
{"score": int, "explanation": string, "impact_category": string, "business_relevance": string, "recommendations": string}`

// HTTPClassifier calls a chat-completions style API to classify changes.
type HTTPClassifier struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewHTTPClassifier constructs a classifier against endpoint using model.
func NewHTTPClassifier(endpoint, apiKey, model string) (*HTTPClassifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint is required")
	}
	if model == "" {
		return nil, fmt.Errorf("classifier model is required")
	}
	return &HTTPClassifier{
		httpClient: &http.Client{},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
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

// Classify sends the change description for analysis and parses the JSON
// verdict out of the reply.
func (c *HTTPClassifier) Classify(ctx context.Context, changeDescription string) (Verdict, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: "Analyze this website change:\n" + changeDescription},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return Verdict{}, fmt.Errorf("decode response: %w", err)
	}
	if chat.Error != nil {
		return Verdict{}, fmt.Errorf("classifier error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return Verdict{}, fmt.Errorf("classifier returned no choices")
	}

	return parseVerdict(chat.Choices[0].Message.Content)
}

// parseVerdict extracts the JSON object from the model reply, tolerating
// surrounding prose or markdown fences.
func parseVerdict(content string) (Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Verdict{}, fmt.Errorf("no JSON object in classifier reply")
	}
	var v Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if v.Score == 0 {
		return Verdict{}, fmt.Errorf("verdict missing score")
	}
	return v, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
