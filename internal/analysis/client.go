// Package analysis produces the unified code-analysis report: the remote AI
// assessment, the local static complexity pass, and the sandbox outcome.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"codesense/internal/logging"
	"codesense/pkg/models"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// AIClient is the remote-analysis surface the orchestrator depends on.
// Analysis is best-effort: implementations return a usable report on every
// path and never an error.
type AIClient interface {
	Analyze(ctx context.Context, language, code string) *models.AnalysisReport
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float32 `json:"temperature"`
	CandidateCount  int     `json:"candidateCount,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type geminiModelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewGeminiClient creates a client bound to one model. The model identifier
// comes from configuration; the catalogue is never enumerated on the hot path.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logging.S(),
	}
}

// Analyze asks the model for a structured assessment of code. Provider
// failures, safety blocks, and unparseable answers all degrade to documented
// fallback reports; the caller never sees an error.
func (g *GeminiClient) Analyze(ctx context.Context, language, code string) *models.AnalysisReport {
	req := &geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(language, code)}},
		}},
		GenerationConfig: &geminiGenConfig{
			Temperature:     0.1,
			CandidateCount:  1,
			MaxOutputTokens: 1024,
		},
	}

	resp, err := g.generateContent(ctx, req)
	if err != nil {
		g.log.Warnw("gemini call failed", "error", err)
		return providerErrorReport(err)
	}

	if len(resp.Candidates) == 0 {
		g.log.Warnw("gemini returned no candidates")
		return blockedReport("no candidates returned")
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "", "STOP", "MAX_TOKENS":
		// usable answer
	default:
		g.log.Warnw("gemini generation blocked", "finish_reason", cand.FinishReason)
		return blockedReport("generation stopped: " + cand.FinishReason)
	}

	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	if text == "" {
		return blockedReport("empty response text")
	}

	return parseReport(text, code)
}

func (g *GeminiClient) generateContent(ctx context.Context, req *geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API status %d: %s", httpResp.StatusCode, truncate(string(raw), 300))
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("gemini API error: %s", resp.Error.Message)
	}
	return &resp, nil
}

// ListModels returns the model names the API key can reach. Used only by the
// debug route.
func (g *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/models?key=%s", g.baseURL, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 20 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model list status %d: %s", httpResp.StatusCode, truncate(string(raw), 300))
	}

	var list geminiModelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
