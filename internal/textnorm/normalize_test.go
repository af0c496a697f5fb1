package textnorm

import (
	"sync"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "case folds latin", input: "The Very Hungry Caterpillar", expected: "theveryhungrycaterpillar"},
		{name: "drops punctuation", input: "Where's Spot?", expected: "wheresspot"},
		{name: "keeps kana and kanji", input: "ぐりとぐら", expected: "ぐりとぐら"},
		{name: "drops middle dot", input: "ミヒャエル・エンデ", expected: "ミヒャエルエンデ"},
		{name: "unifies full width", input: "ＡＢＣ　１２３", expected: "abc123"},
		{name: "half width katakana", input: "ﾓﾓ", expected: "モモ"},
		{name: "keeps prolonged sound mark", input: "スーホの白い馬", expected: "スーホの白い馬"},
		{name: "empty", input: "", expected: ""},
		{name: "only punctuation", input: "!?・", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	inputs := []struct{ input, expected string }{
		{input: "The Very Hungry Caterpillar", expected: "theveryhungrycaterpillar"},
		{input: "ＡＢＣ　１２３", expected: "abc123"},
		{input: "ﾓﾓ", expected: "モモ"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, in := range inputs {
					if got := Normalize(in.input); got != in.expected {
						t.Errorf("Normalize(%q) = %q, expected %q", in.input, got, in.expected)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestStripSeriesSuffix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "ドラゴンたいじ2", expected: "ドラゴンたいじ"},
		{input: "ドラゴンたいじ　２", expected: "ドラゴンたいじ"},
		{input: "はてしない物語 上", expected: "はてしない物語"},
		{input: "はてしない物語（下）", expected: "はてしない物語"},
		{input: "ナルニア国物語 第3巻", expected: "ナルニア国物語"},
		{input: "魔女の宅急便 前編", expected: "魔女の宅急便"},
		{input: "Magic Tree House Vol. 4", expected: "Magic Tree House"},
		{input: "Piano Lessons", expected: "Piano Lessons"},
		{input: "モモ", expected: "モモ"},
		{input: "1984", expected: "1984"},
		{input: "上", expected: "上"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripSeriesSuffix(tt.input); got != tt.expected {
				t.Errorf("StripSeriesSuffix(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHasSeriesSuffix(t *testing.T) {
	if !HasSeriesSuffix("ドラゴンたいじ2") {
		t.Error("Expected trailing numeral to be a series suffix")
	}
	if HasSeriesSuffix("ドラゴンたいじ") {
		t.Error("Expected plain title to have no series suffix")
	}
}

func TestCleanISBN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "978-4-00-114595-9", expected: "9784001145959"},
		{input: " 4001145952 ", expected: "4001145952"},
		{input: "0-8044-2957-x", expected: "080442957X"},
		{input: "９７８４００１１４５９５９", expected: "9784001145959"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanISBN(tt.input); got != tt.expected {
				t.Errorf("CleanISBN(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("はらぺこあおむし", 20); got != "はらぺこあおむし" {
		t.Errorf("Expected short string unchanged, got %q", got)
	}
	if got := Truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("Expected %q, got %q", "abcd…", got)
	}
	if RuneLen(Truncate("とてもながいながいえほんのたいとるですよね", 10)) != 10 {
		t.Error("Expected truncated string to be exactly 10 runes")
	}
}
