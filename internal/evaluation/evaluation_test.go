package evaluation

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookcovers/internal/dataset"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

func cover(url, isbn string, strategy models.Strategy) models.ImageDescriptor {
	return models.ImageDescriptor{Kind: models.KindCover, URL: url, ISBN: isbn, Strategy: strategy, Tier: "exact", Confidence: 1}
}

var placeholder = models.ImageDescriptor{Kind: models.KindPlaceholder, Placeholder: &models.Placeholder{Title: "x"}}

func TestJudge(t *testing.T) {
	tests := []struct {
		name     string
		record   dataset.Record
		got      models.ImageDescriptor
		expected Outcome
	}{
		{name: "isbn match", record: dataset.Record{ExpectedISBN: "978-4-00-114595-9"}, got: cover("https://a/1.jpg", "9784001145959", models.StrategyISBN), expected: OutcomeCorrect},
		{name: "isbn10 label", record: dataset.Record{ExpectedISBN: "0306406152"}, got: cover("https://a/1.jpg", "9780306406157", models.StrategyISBN), expected: OutcomeCorrect},
		{name: "url match ignores scheme", record: dataset.Record{ExpectedCoverURL: "http://a/1.jpg"}, got: cover("https://a/1.jpg", "", models.StrategyTitle), expected: OutcomeCorrect},
		{name: "wrong cover", record: dataset.Record{ExpectedISBN: "9784001145959"}, got: cover("https://a/2.jpg", "9784834000825", models.StrategyTitle), expected: OutcomeWrong},
		{name: "missed", record: dataset.Record{ExpectedISBN: "9784001145959"}, got: placeholder, expected: OutcomeMissed},
		{name: "correct placeholder", record: dataset.Record{ExpectPlaceholder: true}, got: placeholder, expected: OutcomeCorrectPlaceholder},
		{name: "false cover", record: dataset.Record{ExpectPlaceholder: true}, got: cover("https://a/3.jpg", "", models.StrategyAuthor), expected: OutcomeWrong},
		{name: "unlabelled", record: dataset.Record{Title: "モモ"}, got: placeholder, expected: OutcomeUnlabelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Judge(tt.record, tt.got); got != tt.expected {
				t.Errorf("Judge() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

type fakeResolver struct {
	answers  map[string]models.ImageDescriptor
	active   int32
	maxSeen  int32
	mu       sync.Mutex
	resolved []string
}

func (f *fakeResolver) ResolveCoverImage(ctx context.Context, q models.BookQuery) models.ImageDescriptor {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.resolved = append(f.resolved, q.ID)
	f.mu.Unlock()
	return f.answers[q.ID]
}

func TestRunKeepsOrderAndBoundsConcurrency(t *testing.T) {
	records := []dataset.Record{
		{ID: "1", Title: "モモ", ExpectedISBN: "9784001145959"},
		{ID: "2", Title: "ぐりとぐら", ExpectedISBN: "9784834000825"},
		{ID: "3", Title: "存在しない本", ExpectPlaceholder: true},
		{ID: "4", Title: "はらぺこあおむし", ExpectedCoverURL: "https://covers.example/4.jpg"},
		{ID: "5", Title: "ラベルなし"},
	}
	f := &fakeResolver{answers: map[string]models.ImageDescriptor{
		"1": cover("https://covers.example/1.jpg", "9784001145959", models.StrategyISBN),
		"2": cover("https://covers.example/2.jpg", "9780000000000", models.StrategyTitle),
		"3": placeholder,
		"4": placeholder,
		"5": cover("https://covers.example/5.jpg", "", models.StrategyTitleAuthor),
	}}

	results := Run(context.Background(), f, records, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if len(results) != len(records) {
		t.Fatalf("Expected %d results, got %d", len(records), len(results))
	}
	for i, r := range results {
		if r.ID != records[i].ID {
			t.Errorf("Result %d has id %s, expected %s", i, r.ID, records[i].ID)
		}
	}
	if m := atomic.LoadInt32(&f.maxSeen); m > 2 {
		t.Errorf("Expected at most 2 concurrent resolutions, saw %d", m)
	}

	s := Summarize(results)
	if s.Total != 5 || s.Covers != 3 || s.Placeholders != 2 {
		t.Errorf("Unexpected counts %+v", s)
	}
	if s.Correct != 1 || s.Wrong != 1 || s.Missed != 1 || s.CorrectPlaceholders != 1 || s.Unlabelled != 1 {
		t.Errorf("Unexpected outcomes %+v", s)
	}
	if s.Precision != 0.5 {
		t.Errorf("Expected precision 0.5, got %v", s.Precision)
	}
	if s.Recall < 0.333 || s.Recall > 0.334 {
		t.Errorf("Expected recall 1/3, got %v", s.Recall)
	}
	if st := s.ByStrategy[string(models.StrategyISBN)]; st.Covers != 1 || st.HitRate != 1 {
		t.Errorf("Unexpected isbn strategy stats %+v", st)
	}
	if st := s.ByStrategy[string(models.StrategyTitle)]; st.Covers != 1 || st.HitRate != 0 {
		t.Errorf("Unexpected title strategy stats %+v", st)
	}
}

func TestReportRoundTripAndFormats(t *testing.T) {
	results := []Result{
		{ID: "1", Title: "モモ", Expected: ExpectCover, Outcome: OutcomeCorrect, Kind: "cover", URL: "https://covers.example/1.jpg", Strategy: "isbn", Tier: "exact", Confidence: 1, Duration: 40 * time.Millisecond},
		{ID: "2", Title: "ぐりとぐら", Expected: ExpectCover, Outcome: OutcomeWrong, Kind: "cover", URL: "https://covers.example/2.jpg", Strategy: "title", Tier: "high_confidence", Duration: 60 * time.Millisecond},
	}
	report := NewReport(RunConfig{DatasetPath: "books.jsonl", Providers: []string{"googlebooks"}}, results)
	if report.Config.RunID == "" {
		t.Fatal("Expected a generated run id")
	}

	path, err := report.SaveYAML(t.TempDir())
	if err != nil {
		t.Fatalf("SaveYAML failed: %v", err)
	}
	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if loaded.Config.RunID != report.Config.RunID || len(loaded.Results) != 2 {
		t.Errorf("Loaded report differs: %+v", loaded.Config)
	}
	if loaded.Summary.MedianDuration != 50*time.Millisecond {
		t.Errorf("Expected median 50ms, got %s", loaded.Summary.MedianDuration)
	}

	var text bytes.Buffer
	if err := loaded.Write(&text, "text"); err != nil {
		t.Fatalf("text report failed: %v", err)
	}
	if !strings.Contains(text.String(), "Precision:            50.00%") || !strings.Contains(text.String(), "[2] ぐりとぐら") {
		t.Errorf("Unexpected text report:\n%s", text.String())
	}

	var csvOut bytes.Buffer
	if err := loaded.Write(&csvOut, "csv"); err != nil {
		t.Fatalf("csv report failed: %v", err)
	}
	if lines := strings.Count(csvOut.String(), "\n"); lines != 3 {
		t.Errorf("Expected header plus 2 rows, got %d lines", lines)
	}

	if err := loaded.Write(io.Discard, "xml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
