// services/ai_judge.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/utils"
)

// ProofJudge renders a verdict on one screenshot. Implementations must treat
// every failure as an error return — the caller decides the fail-open policy.
type ProofJudge interface {
	Judge(ctx context.Context, screenshotURL, sessionToken string) (*models.VerificationVerdict, error)
}

const defaultJudgeModel = "gemini-2.0-flash"

// Screenshots are capped at 5MB on upload; anything bigger at fetch time is
// not something we produced.
const maxScreenshotFetchBytes = 8 * 1024 * 1024

const judgeInstruction = `You are verifying a competitive arcade match result screenshot.
Assess:
1. Whether the image shows a genuine game result screen (not a menu, lobby, or unrelated picture).
2. Whether the overlay code "%s" is visible anywhere in the image.
3. Signs of image editing or manipulation artifacts.
4. Metadata or rendering inconsistencies (mismatched fonts, compression seams).
5. Whether the UI style is plausible for an arcade game result screen.
Answer with a single JSON object and nothing else:
{"verdict": "verified" | "needs_review" | "rejected", "confidence": <0-100>, "reasons": ["..."]}`

// GeminiJudge asks a vision-capable Gemini model whether a result screenshot
// is genuine and shows the expected session token overlay.
type GeminiJudge struct {
	client *genai.Client
	model  string
	fetch  *http.Client
}

func NewGeminiJudge(apiKey, model string) (*GeminiJudge, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultJudgeModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiJudge{
		client: client,
		model:  model,
		fetch:  utils.HTTPClient,
	}, nil
}

// Judge fetches the screenshot and asks the model for a structured verdict.
// Rate limits, quota errors and unparsable answers all surface as errors;
// the verification service maps those to needs_review.
func (j *GeminiJudge) Judge(ctx context.Context, screenshotURL, sessionToken string) (*models.VerificationVerdict, error) {
	data, mimeType, err := j.fetchScreenshot(ctx, screenshotURL)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(fmt.Sprintf(judgeInstruction, sessionToken)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := j.client.Models.GenerateContent(ctx, j.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI judge call failed: %w", err)
	}

	return parseVerdict(resp.Text())
}

func (j *GeminiJudge) fetchScreenshot(ctx context.Context, screenshotURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", screenshotURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build screenshot request: %w", err)
	}

	resp, err := j.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch screenshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("screenshot fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScreenshotFetchBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read screenshot: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	return data, mimeType, nil
}

// parseVerdict extracts the first JSON object from the model's text answer.
// Models wrap answers in prose or code fences often enough that strict
// unmarshalling of the whole response is a losing game.
func parseVerdict(text string) (*models.VerificationVerdict, error) {
	raw := firstJSONObject(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var verdict models.VerificationVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse model verdict: %w", err)
	}

	switch verdict.Status {
	case models.StatusVerified, models.StatusNeedsReview, models.StatusRejected:
	default:
		return nil, fmt.Errorf("model returned unknown verdict %q", verdict.Status)
	}

	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 100 {
		verdict.Confidence = 100
	}

	return &verdict, nil
}

// firstJSONObject returns the first balanced {...} block in s, honoring
// string literals and escapes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
