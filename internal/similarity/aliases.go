package similarity

import (
	"fmt"
	"os"
	"sort"

	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
	"gopkg.in/yaml.v3"
)

// AliasTable groups spellings and readings of the same author name.
// It is loaded at startup so new variants need no code change.
type AliasTable struct {
	groups map[string][]int // normalized name -> group indexes
	names  []string         // canonical name per group
}

// aliasFile is the on-disk YAML shape:
//
//	authors:
//	  ミヒャエル・エンデ: [Michael Ende, ミハエル・エンデ]
type aliasFile struct {
	Authors map[string][]string `yaml:"authors"`
}

// NewAliasTable builds a table from canonical name -> variant spellings.
func NewAliasTable(entries map[string][]string) *AliasTable {
	t := &AliasTable{groups: make(map[string][]int)}

	// Sort so group indexes are stable across runs
	canonicals := make([]string, 0, len(entries))
	for canonical := range entries {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		idx := len(t.names)
		t.names = append(t.names, canonical)
		t.add(canonical, idx)
		for _, variant := range entries[canonical] {
			t.add(variant, idx)
		}
	}
	return t
}

func (t *AliasTable) add(name string, idx int) {
	key := textnorm.Normalize(name)
	if key == "" {
		return
	}
	for _, existing := range t.groups[key] {
		if existing == idx {
			return
		}
	}
	t.groups[key] = append(t.groups[key], idx)
}

// LoadAliases reads an alias table from a YAML file.
func LoadAliases(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}

	return NewAliasTable(file.Authors), nil
}

// Same reports whether a and b are listed as variants of one author.
func (t *AliasTable) Same(a, b string) bool {
	if t == nil {
		return false
	}
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	for _, ga := range t.groups[na] {
		for _, gb := range t.groups[nb] {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// Canonical returns the canonical spelling for name, if the table knows it.
func (t *AliasTable) Canonical(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	groups := t.groups[textnorm.Normalize(name)]
	if len(groups) == 0 {
		return "", false
	}
	return t.names[groups[0]], true
}

// Len returns the number of alias groups.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
