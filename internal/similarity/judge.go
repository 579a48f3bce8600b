package similarity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const judgeSystemPrompt = `You compare two event contracts listed on different prediction-market venues. Decide whether they are IDENTICAL in the strictest sense: the same underlying real-world event AND the same resolution rule, such that any outcome resolves both contracts the same way. Differences in phrasing do not matter; differences in thresholds, dates, sources of truth, or settlement terms do. Respond with a JSON object containing a single boolean field "final_answer".`

// Judge asks an LLM whether two markets are the same event contract. The
// vector index is recall-oriented and cheap; the judge is precision-oriented
// and expensive, so it only sees the index's top candidates.
type Judge struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// JudgeConfig holds judge client configuration.
type JudgeConfig struct {
	BaseURL string // defaults to the OpenAI API
	APIKey  string
	Model   string
	Logger  *zap.Logger
}

// NewJudge creates a judge client.
func NewJudge(cfg *JudgeConfig) *Judge {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Judge{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     cfg.Logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat interface{}   `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	FinalAnswer bool `json:"final_answer"`
}

// SameMarket returns the judge's boolean verdict for two markets. Any failure
// is a FALSE verdict: a lost LLM call must never create a spurious pair.
func (j *Judge) SameMarket(ctx context.Context, a, b *types.Market) bool {
	JudgeCallsTotal.Inc()

	same, err := j.ask(ctx, a, b)
	if err != nil {
		JudgeErrorsTotal.Inc()
		j.logger.Warn("judge-call-failed",
			zap.String("market-1", a.Key()),
			zap.String("market-2", b.Key()),
			zap.Error(err))
		return false
	}
	if same {
		JudgeConfirmationsTotal.Inc()
	}
	return same
}

func (j *Judge) ask(ctx context.Context, a, b *types.Market) (bool, error) {
	userPrompt := fmt.Sprintf(
		"Contract A\nName: %s\nRules: %s\n\nContract B\nName: %s\nRules: %s",
		a.Name, a.Rules, b.Name, b.Rules)

	reqBody := chatRequest{
		Model: j.model,
		Messages: []chatMessage{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "identity_verdict",
				"strict": true,
				"schema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"final_answer": map[string]interface{}{"type": "boolean"},
					},
					"required":             []string{"final_answer"},
					"additionalProperties": false,
				},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return false, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		j.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("judge status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return false, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return false, fmt.Errorf("empty judge response")
	}

	var v verdict
	err = json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &v)
	if err != nil {
		return false, fmt.Errorf("parse verdict: %w", err)
	}
	return v.FinalAnswer, nil
}
