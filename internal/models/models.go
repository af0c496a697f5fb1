package models

import "time"

// BookQuery identifies a recommended book whose cover should be resolved
type BookQuery struct {
	ID            string   `json:"id"`
	Title         string   `json:"title" validate:"required"`
	Author        string   `json:"author"`
	ISBN          string   `json:"isbn,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// Strategy names the query strategy that produced a candidate
type Strategy string

const (
	StrategyISBN        Strategy = "isbn"
	StrategyTitleAuthor Strategy = "title_author"
	StrategyTitle       Strategy = "title"
	StrategyAuthor      Strategy = "author"
)

// Candidate is one image-bearing record returned by a bibliographic provider.
// Candidates are treated as immutable once produced.
type Candidate struct {
	Source        string   `json:"source"`   // provider name, e.g. "googlebooks"
	Strategy      Strategy `json:"strategy"` // strategy that produced this record
	RawTitle      string   `json:"raw_title"`
	RawAuthors    []string `json:"raw_authors"`
	ImageURL      string   `json:"image_url,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	ISBNs         []string `json:"isbns,omitempty"`
	QualityScore  float64  `json:"quality_score"`
	Order         int      `json:"order"` // position after aggregation, used for stable tie-breaks
}

// Tier classifies a candidate after similarity scoring
type Tier int

const (
	TierRejected Tier = iota
	TierModerate
	TierHighConfidence
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierHighConfidence:
		return "high_confidence"
	case TierModerate:
		return "moderate"
	default:
		return "rejected"
	}
}

// MarshalText renders the tier name in JSON and YAML output.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MatchVerdict is the derived classification of a single candidate
type MatchVerdict struct {
	Candidate       Candidate `json:"candidate"`
	TitleSimilarity float64   `json:"title_similarity"`
	AuthorMatch     bool      `json:"author_match"`
	AuthorRule      string    `json:"author_rule,omitempty"`
	PublisherMatch  bool      `json:"publisher_match"`
	YearMatch       bool      `json:"year_match"`
	CompositeScore  float64   `json:"composite_score"`
	Tier            Tier      `json:"tier"`
	Strict          bool      `json:"strict"`
}

// Stage is a step of the visual confidence pipeline
type Stage string

const (
	StageBasic    Stage = "basic"
	StageDetailed Stage = "detailed"
	StageFinal    Stage = "final"
)

// Rank orders stages for tie-breaking; later stages rank higher.
func (s Stage) Rank() int {
	switch s {
	case StageFinal:
		return 3
	case StageDetailed:
		return 2
	case StageBasic:
		return 1
	default:
		return 0
	}
}

// VisualVerification is produced by one visual pipeline stage for one candidate
type VisualVerification struct {
	Stage          Stage     `json:"stage"`
	Candidate      Candidate `json:"candidate"`
	DetectedTitle  string    `json:"detected_title"`
	DetectedAuthor string    `json:"detected_author"`
	Similarity     float64   `json:"similarity"`    // title similarity, 0-100
	ImageQuality   float64   `json:"image_quality"` // 0-100
	Warnings       []string  `json:"warnings,omitempty"`
	Confidence     float64   `json:"confidence"` // 0-1
	Recommendation string    `json:"recommendation,omitempty"`
}

// Score is the selection score used to pick the best verification.
func (v VisualVerification) Score() float64 {
	return v.Confidence + v.ImageQuality/100 + v.Similarity/100
}

// DescriptorKind tells the presentation layer how to render a descriptor
type DescriptorKind string

const (
	KindCover       DescriptorKind = "cover"
	KindPlaceholder DescriptorKind = "placeholder"
)

// Theme is the visual theme of a placeholder cover
type Theme struct {
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
}

// Placeholder carries the text and theme of a synthesized cover
type Placeholder struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Theme  Theme  `json:"theme"`
}

// ImageDescriptor is the outward result of cover resolution: a real image URL
// or a placeholder for the presentation layer to render.
type ImageDescriptor struct {
	Kind        DescriptorKind `json:"kind"`
	URL         string         `json:"url,omitempty"`
	Source      string         `json:"source,omitempty"`
	Strategy    Strategy       `json:"strategy,omitempty"`
	ISBN        string         `json:"isbn,omitempty"` // ISBN-13 of the chosen record, when known
	Tier        string         `json:"tier,omitempty"`
	Confidence  float64        `json:"confidence"`
	Placeholder *Placeholder   `json:"placeholder,omitempty"`
}

// IsPlaceholder reports whether the descriptor is a synthesized cover.
func (d ImageDescriptor) IsPlaceholder() bool {
	return d.Kind == KindPlaceholder
}

// CacheEntry is a resolved descriptor held by the cache
type CacheEntry struct {
	Key        string          `json:"key"`
	Descriptor ImageDescriptor `json:"descriptor"`
	CreatedAt  time.Time       `json:"created_at"`
}
