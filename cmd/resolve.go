package cmd

import (
	"errors"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

func newResolveCmd() *cobra.Command {
	var (
		query        models.BookQuery
		visual       bool
		providerList string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the cover image for one book",
		Long: `Resolves the cover of a single book and prints the image descriptor as JSON.

The descriptor is either a cover (kind "cover" with a URL) or a placeholder
(kind "placeholder" with the text and theme to render).`,
		Example: `  # Resolve by ISBN, title and author
  bookcovers resolve --isbn 9784001145959 --title モモ --author "ミヒャエル・エンデ"

  # Title and author only, with the visual check
  bookcovers resolve --title ぐりとぐら --author なかがわりえこ --visual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if query.Title == "" {
				return errors.New("--title is required")
			}

			cfg, err := loadConfig(cmd, visual, providerList)
			if err != nil {
				return err
			}
			r, err := buildResolver(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}

			d := r.ResolveCoverImage(cmd.Context(), query)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}

	cmd.Flags().StringVar(&query.ID, "id", "", "Identifier echoed in logs")
	cmd.Flags().StringVar(&query.Title, "title", "", "Book title (required)")
	cmd.Flags().StringVar(&query.Author, "author", "", "Author name")
	cmd.Flags().StringVar(&query.ISBN, "isbn", "", "ISBN-10 or ISBN-13")
	cmd.Flags().StringVar(&query.Publisher, "publisher", "", "Publisher")
	cmd.Flags().IntVar(&query.PublishedYear, "year", 0, "Publication year")
	cmd.Flags().StringSliceVar(&query.Categories, "category", nil, "Category used for the placeholder theme (repeatable)")
	addResolverFlags(cmd, &visual, &providerList)

	return cmd
}
