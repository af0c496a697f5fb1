package providers

import (
	"context"
)

// Config represents the configuration for one call to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte // optional image sent alongside the prompt
	MIMEType    string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// Detail selects how thorough a cover description should be.
type Detail string

const (
	DetailBasic    Detail = "basic"
	DetailDetailed Detail = "detailed"
	DetailFinal    Detail = "final"
)

// Recommendation values returned by a describer
const (
	RecommendAccept    = "accept"
	RecommendReject    = "reject"
	RecommendUncertain = "uncertain"
)

// DescribeRequest asks a vision model to read a cover image.
type DescribeRequest struct {
	ImageBytes     []byte
	MIMEType       string
	ExpectedTitle  string
	ExpectedAuthor string
	Detail         Detail
}

// Description is what a vision model reports about a cover image.
// Similarities and image quality are on a 0-100 scale, confidence on 0-1.
type Description struct {
	DetectedTitle     string   `json:"detected_title"`
	DetectedAuthor    string   `json:"detected_author"`
	DetectedPublisher string   `json:"detected_publisher,omitempty"`
	TitleSimilarity   float64  `json:"title_similarity"`
	AuthorSimilarity  float64  `json:"author_similarity"`
	Confidence        float64  `json:"confidence"`
	ImageQuality      float64  `json:"image_quality"`
	Warnings          []string `json:"warnings"`
	CriticalWarnings  []string `json:"critical_warnings"`
	Recommendation    string   `json:"recommendation"`
}

// Describer reads cover images.
type Describer interface {
	Describe(ctx context.Context, req DescribeRequest) (Description, error)
}
