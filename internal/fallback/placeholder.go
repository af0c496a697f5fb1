// Package fallback synthesizes placeholder covers for books whose real cover
// could not be resolved.
package fallback

import (
	"strings"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

const (
	MaxTitleRunes  = 20
	MaxAuthorRunes = 15
)

type themeRule struct {
	keywords []string
	theme    models.Theme
}

// themes is checked in order; the first rule with a keyword contained in a
// normalized category wins.
var themes = []themeRule{
	{[]string{"動物", "どうぶつ", "animal", "pet"}, models.Theme{Name: "animals", Icon: "🐾", Background: "#FFF3E0", Foreground: "#E65100"}},
	{[]string{"乗り物", "のりもの", "vehicle", "train", "car"}, models.Theme{Name: "vehicles", Icon: "🚂", Background: "#E3F2FD", Foreground: "#0D47A1"}},
	{[]string{"自然", "しぜん", "植物", "nature", "plant"}, models.Theme{Name: "nature", Icon: "🌳", Background: "#E8F5E9", Foreground: "#1B5E20"}},
	{[]string{"宇宙", "うちゅう", "space", "star"}, models.Theme{Name: "space", Icon: "🚀", Background: "#1A237E", Foreground: "#FFFFFF"}},
	{[]string{"科学", "かがく", "science"}, models.Theme{Name: "science", Icon: "🔬", Background: "#E0F7FA", Foreground: "#006064"}},
	{[]string{"海", "うみ", "ocean", "sea"}, models.Theme{Name: "ocean", Icon: "🐳", Background: "#E1F5FE", Foreground: "#01579B"}},
	{[]string{"昔話", "むかしばなし", "民話", "folktale", "folklore"}, models.Theme{Name: "folktale", Icon: "🏯", Background: "#FBE9E7", Foreground: "#BF360C"}},
	{[]string{"ファンタジー", "冒険", "fantasy", "adventure"}, models.Theme{Name: "fantasy", Icon: "🐉", Background: "#F3E5F5", Foreground: "#4A148C"}},
	{[]string{"食べ物", "たべもの", "food", "cooking"}, models.Theme{Name: "food", Icon: "🍎", Background: "#FFEBEE", Foreground: "#B71C1C"}},
	{[]string{"家族", "かぞく", "family"}, models.Theme{Name: "family", Icon: "🏠", Background: "#FFF8E1", Foreground: "#FF6F00"}},
	{[]string{"友達", "友情", "ともだち", "friend"}, models.Theme{Name: "friendship", Icon: "🤝", Background: "#FCE4EC", Foreground: "#880E4F"}},
	{[]string{"季節", "きせつ", "season", "holiday"}, models.Theme{Name: "seasons", Icon: "🍂", Background: "#FFF3E0", Foreground: "#6D4C41"}},
}

// DefaultTheme is used when no category matches.
var DefaultTheme = models.Theme{Name: "default", Icon: "📚", Background: "#ECEFF1", Foreground: "#37474F"}

// ThemeFor returns the theme of the first category that matches the table.
func ThemeFor(categories []string) models.Theme {
	for _, category := range categories {
		normalized := textnorm.Normalize(category)
		if normalized == "" {
			continue
		}
		for _, rule := range themes {
			for _, keyword := range rule.keywords {
				if strings.Contains(normalized, textnorm.Normalize(keyword)) {
					return rule.theme
				}
			}
		}
	}
	return DefaultTheme
}

// Placeholder derives a placeholder descriptor for query. The result depends
// only on the query, so repeated calls render identically.
func Placeholder(query models.BookQuery) models.ImageDescriptor {
	return models.ImageDescriptor{
		Kind: models.KindPlaceholder,
		Placeholder: &models.Placeholder{
			Title:  textnorm.Truncate(query.Title, MaxTitleRunes),
			Author: textnorm.Truncate(query.Author, MaxAuthorRunes),
			Theme:  ThemeFor(query.Categories),
		},
	}
}
