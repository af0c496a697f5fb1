// Package dataset loads labelled book queries used to evaluate cover resolution.
package dataset

import (
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

// Record is one labelled query. The expectation is either a known cover URL,
// a known ISBN the cover must come from, or that no cover exists.
type Record struct {
	ID            string   `json:"id" parquet:"id"`
	Title         string   `json:"title" parquet:"title"`
	Author        string   `json:"author" parquet:"author"`
	ISBN          string   `json:"isbn" parquet:"isbn,optional"`
	Publisher     string   `json:"publisher" parquet:"publisher,optional"`
	PublishedYear int      `json:"published_year" parquet:"published_year,optional"`
	Categories    []string `json:"categories" parquet:"categories,list"`

	ExpectedCoverURL  string `json:"expected_cover_url" parquet:"expected_cover_url,optional"`
	ExpectedISBN      string `json:"expected_isbn" parquet:"expected_isbn,optional"`
	ExpectPlaceholder bool   `json:"expect_placeholder" parquet:"expect_placeholder,optional"`
}

// Query converts the record to the query sent to the resolver.
func (r *Record) Query() models.BookQuery {
	return models.BookQuery{
		ID:            r.ID,
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		Publisher:     r.Publisher,
		PublishedYear: r.PublishedYear,
		Categories:    r.Categories,
	}
}

// HasExpectation reports whether the record states what a correct answer is.
func (r *Record) HasExpectation() bool {
	return r.ExpectPlaceholder || r.ExpectedCoverURL != "" || textnorm.CleanISBN(r.ExpectedISBN) != ""
}
