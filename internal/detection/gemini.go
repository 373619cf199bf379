package detection

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiPrompt = `List the distinct physical objects visible in this photo.
Respond with a JSON array only, where each element is {"label": string, "confidence": number}.
Use short lowercase common nouns for labels (for example "cat", "car", "person").
Confidence is your certainty between 0 and 1.`

// GeminiDetector asks a Gemini vision model to label objects in an image.
type GeminiDetector struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiDetector creates a Gemini-backed detector.
func NewGeminiDetector(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiDetector, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, detectionError("gemini", "GEMINI_API_KEY not set", nil)
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, detectionError("gemini", "create client", err)
	}
	return &GeminiDetector{client: client, model: model, timeout: timeout}, nil
}

// Detect sends the image inline with the labelling prompt.
func (g *GeminiDetector) Detect(ctx context.Context, storagePath string) ([]Detection, error) {
	data, err := os.ReadFile(storagePath)
	if err != nil {
		return nil, detectionError("gemini", "read image", err)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat(storagePath), data), genai.Text(geminiPrompt))
	if err != nil {
		return nil, detectionError("gemini", "generate content", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, detectionError("gemini", "no candidates returned", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, detectionError("gemini", "empty content returned", nil)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return parseGeminiDetections(text.String())
}

// HealthCheck reports whether a client is configured. It does not spend a
// model call.
func (g *GeminiDetector) HealthCheck(context.Context) Health {
	health := Health{Provider: "gemini", Endpoint: g.model}
	if g.client == nil {
		health.Detail = "client not initialised"
		return health
	}
	health.Ready = true
	health.Detail = "api key configured"
	return health
}

// Close releases the underlying client.
func (g *GeminiDetector) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func parseGeminiDetections(raw string) ([]Detection, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var detections []Detection
	if err := json.Unmarshal([]byte(cleaned), &detections); err != nil {
		var wrapped detectResponse
		if wrapErr := json.Unmarshal([]byte(cleaned), &wrapped); wrapErr != nil {
			return nil, detectionError("gemini", "decode response", err)
		}
		detections = wrapped.Detections
	}
	return detections, nil
}

// imageFormat maps a file extension to the short format name genai expects.
func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".webp":
		return "webp"
	default:
		return "jpeg"
	}
}
