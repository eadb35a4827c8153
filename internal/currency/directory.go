// Package currency resolves free-text queries to canonical currency records.
package currency

import (
	"context"
	"strings"
	"unicode"

	"github.com/m3rciful/pricebot/internal/domain"
)

// Lister supplies the candidate records a query is matched against.
type Lister interface {
	List(ctx context.Context) ([]domain.CurrencyRecord, error)
}

// matcher reports whether a query designates the given record.
type matcher func(query string, rec domain.CurrencyRecord) bool

// Directory resolves queries through an ordered list of matcher strategies.
// Strategies are tried in priority order and the first match wins; there is
// no substring or fuzzy matching, so ambiguous input resolves to nothing.
type Directory struct {
	source   Lister
	matchers []matcher
}

// NewDirectory builds a directory with the standard strategy order:
// exact symbol, exact English name, then localized name discounting
// whitespace and zero-width joiners.
func NewDirectory(source Lister) *Directory {
	return &Directory{
		source: source,
		matchers: []matcher{
			matchSymbol,
			matchEnglishName,
			matchLocalizedName,
		},
	}
}

// Resolve maps a query to a currency record. A failed lookup is a normal
// (zero, false) outcome; the error is reserved for the underlying store.
func (d *Directory) Resolve(ctx context.Context, query string) (domain.CurrencyRecord, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.CurrencyRecord{}, false, nil
	}

	recs, err := d.source.List(ctx)
	if err != nil {
		return domain.CurrencyRecord{}, false, err
	}

	for _, match := range d.matchers {
		for _, rec := range recs {
			if match(query, rec) {
				return rec, true, nil
			}
		}
	}
	return domain.CurrencyRecord{}, false, nil
}

func matchSymbol(query string, rec domain.CurrencyRecord) bool {
	return strings.EqualFold(query, rec.Symbol)
}

func matchEnglishName(query string, rec domain.CurrencyRecord) bool {
	return strings.EqualFold(query, rec.EnglishName)
}

// matchLocalizedName compares the query to the stored localized name after
// discounting whitespace and zero-width joiners anywhere between characters,
// so compound names typed without the correct spacing still resolve.
func matchLocalizedName(query string, rec domain.CurrencyRecord) bool {
	if rec.LocalizedName == "" {
		return false
	}
	return strings.EqualFold(foldJoiners(query), foldJoiners(rec.LocalizedName))
}

// foldJoiners strips whitespace and zero-width joiner characters (U+200C,
// U+200D) from the string.
func foldJoiners(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\u200c' || r == '\u200d' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
