package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Vision turns a text-generating Provider into a Describer by prompting it
// for a JSON report about the cover image.
type Vision struct {
	Name        string
	provider    Provider
	model       string
	temperature float64
}

// NewVision wraps provider. Low temperature keeps the reports consistent.
func NewVision(name string, provider Provider, model string) *Vision {
	return &Vision{
		Name:        name,
		provider:    provider,
		model:       model,
		temperature: 0.1,
	}
}

// Describe sends the image and parses the model's JSON answer.
func (v *Vision) Describe(ctx context.Context, req DescribeRequest) (Description, error) {
	if len(req.ImageBytes) == 0 {
		return Description{}, fmt.Errorf("no image data to describe")
	}

	text, err := v.provider.ExtractText(ctx, Config{
		Model:       v.model,
		Temperature: v.temperature,
		Prompt:      BuildPrompt(req),
		Image:       req.ImageBytes,
		MIMEType:    req.MIMEType,
	})
	if err != nil {
		return Description{}, fmt.Errorf("failed to describe image with %s: %w", v.Name, err)
	}

	desc, err := ParseDescription(text)
	if err != nil {
		return Description{}, fmt.Errorf("failed to parse %s description: %w", v.Name, err)
	}
	return desc, nil
}

// BuildPrompt renders the instructions for one detail level.
func BuildPrompt(req DescribeRequest) string {
	var b strings.Builder

	b.WriteString("You are checking whether an image is the front cover of a specific children's book.\n\n")
	fmt.Fprintf(&b, "Expected title: %s\n", req.ExpectedTitle)
	fmt.Fprintf(&b, "Expected author: %s\n\n", req.ExpectedAuthor)

	switch req.Detail {
	case DetailDetailed:
		b.WriteString(`Read all text on the cover, including the publisher, series name, edition and format.
Warn if the cover looks like a comic adaptation, an audio edition, a box set, a different volume of a series or a translation with a different title.
`)
	case DetailFinal:
		b.WriteString(`This is the final check before the image is shown to readers. Be strict.
Only recommend "accept" if the title and author on the cover clearly match the expected book.
Put anything that makes the image unusable (wrong book, wrong volume, not a cover, unreadable) in critical_warnings.
`)
	default:
		b.WriteString("Read the title and author printed on the cover.\n")
	}

	b.WriteString(`
Respond with only a JSON object of this shape:
{
  "detected_title": "title as printed",
  "detected_author": "author as printed",
  "detected_publisher": "publisher if visible",
  "title_similarity": 0-100,
  "author_similarity": 0-100,
  "confidence": 0.0-1.0,
  "image_quality": 0-100,
  "warnings": [],
  "critical_warnings": [],
  "recommendation": "accept" | "reject" | "uncertain"
}`)

	return b.String()
}

// ParseDescription extracts the JSON report from a model response, tolerating
// markdown code fences and surrounding prose, and clamps every score to its range.
func ParseDescription(response string) (Description, error) {
	raw := ExtractJSON(response)
	if raw == "" {
		return Description{}, fmt.Errorf("no JSON object in response")
	}

	var desc Description
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return Description{}, fmt.Errorf("failed to unmarshal description: %w", err)
	}

	// Some models answer confidence as a percentage
	if desc.Confidence > 1 {
		desc.Confidence /= 100
	}
	desc.Confidence = clamp(desc.Confidence, 0, 1)
	desc.TitleSimilarity = clamp(desc.TitleSimilarity, 0, 100)
	desc.AuthorSimilarity = clamp(desc.AuthorSimilarity, 0, 100)
	desc.ImageQuality = clamp(desc.ImageQuality, 0, 100)

	switch r := strings.ToLower(strings.TrimSpace(desc.Recommendation)); r {
	case RecommendAccept, RecommendReject:
		desc.Recommendation = r
	default:
		desc.Recommendation = RecommendUncertain
	}

	return desc, nil
}

// ExtractJSON returns the outermost JSON object in s, or "".
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
