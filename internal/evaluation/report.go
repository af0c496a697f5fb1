package evaluation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunConfig describes how a run was made.
type RunConfig struct {
	RunID          string   `yaml:"run_id" json:"run_id"`
	Timestamp      string   `yaml:"timestamp" json:"timestamp"`
	DatasetPath    string   `yaml:"dataset_path" json:"dataset_path"`
	SampleSize     int      `yaml:"sample_size" json:"sample_size"`
	Concurrency    int      `yaml:"concurrency" json:"concurrency"`
	Providers      []string `yaml:"providers" json:"providers"`
	Visual         bool     `yaml:"visual" json:"visual"`
	VisualProvider string   `yaml:"visual_provider,omitempty" json:"visual_provider,omitempty"`
}

// Report is the persisted form of a run.
type Report struct {
	Config  RunConfig `yaml:"config" json:"config"`
	Summary Summary   `yaml:"summary" json:"summary"`
	Results []Result  `yaml:"results" json:"results"`
}

// NewReport summarizes results under a fresh run id.
func NewReport(cfg RunConfig, results []Result) *Report {
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	return &Report{
		Config:  cfg,
		Summary: Summarize(results),
		Results: results,
	}
}

// SaveYAML writes the report into dir and returns the file path.
func (r *Report) SaveYAML(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	id := r.Config.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("covers-%s-%s.yaml", r.Config.Timestamp, id))

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return path, nil
}

// LoadReport reads a report written by SaveYAML.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

// Write renders the report as text, json or csv.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "text":
		return r.writeText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return r.writeCSV(w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	s := r.Summary
	p := func(format string, args ...any) {
		fmt.Fprintf(w, format, args...)
	}

	p("========================================\n")
	p("Cover Resolution Evaluation\n")
	p("========================================\n")
	p("Run:         %s (%s)\n", r.Config.RunID, r.Config.Timestamp)
	p("Dataset:     %s\n", r.Config.DatasetPath)
	p("Providers:   %v\n", r.Config.Providers)
	if r.Config.Visual {
		p("Visual:      %s\n", r.Config.VisualProvider)
	}
	p("\n")
	p("Total Records:        %d\n", s.Total)
	p("Covers:               %d\n", s.Covers)
	p("Placeholders:         %d\n", s.Placeholders)
	p("Correct:              %d\n", s.Correct)
	p("Wrong:                %d\n", s.Wrong)
	p("Missed:               %d\n", s.Missed)
	p("Correct Placeholders: %d\n", s.CorrectPlaceholders)
	p("Unlabelled:           %d\n", s.Unlabelled)
	p("\n")
	p("Precision:            %.2f%%\n", s.Precision*100)
	p("Recall:               %.2f%%\n", s.Recall*100)
	p("Average Duration:     %s\n", s.AverageDuration)
	p("Median Duration:      %s\n", s.MedianDuration)
	p("\n")
	p("By Strategy:\n")

	strategies := make([]string, 0, len(s.ByStrategy))
	for name := range s.ByStrategy {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)
	for _, name := range strategies {
		st := s.ByStrategy[name]
		p("  %-13s covers=%d correct=%d hit_rate=%.2f%%\n", name, st.Covers, st.Correct, st.HitRate*100)
	}

	p("\nWrong Covers:\n")
	for _, res := range r.Results {
		if res.Outcome == OutcomeWrong {
			p("  [%s] %s / %s -> %s (%s, %s)\n", res.ID, res.Title, res.Author, res.URL, res.Strategy, res.Tier)
		}
	}
	p("========================================\n")
	return nil
}

func (r *Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "author", "expected", "outcome", "kind", "url", "source", "strategy", "tier", "confidence", "duration_ms"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, res := range r.Results {
		row := []string{
			res.ID,
			res.Title,
			res.Author,
			res.Expected,
			string(res.Outcome),
			res.Kind,
			res.URL,
			res.Source,
			res.Strategy,
			res.Tier,
			strconv.FormatFloat(res.Confidence, 'f', 3, 64),
			strconv.FormatInt(res.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
