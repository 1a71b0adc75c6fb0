// Package extract pulls names, dates, places and a word count out of plain text.
package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

const months = `january|february|march|april|june|july|august|september|october|november|december|` +
	`enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre|` +
	`jan|feb|mar|apr|may|jun|jul|aug|sept|sep|oct|nov|dec|maj`

// Cities recognised as places.
var Cities = []string{
	"New York", "Chicago", "Los Angeles", "San Francisco", "Boston",
	"Minneapolis", "Detroit", "Miami", "Stockholm", "Göteborg", "Malmö",
	"Uppsala", "Lund", "Karlstad", "Örebro", "Västerås", "Linköping",
}

// MatchTimeout bounds a single pattern evaluation.
const MatchTimeout = 2 * time.Second

// Extractor holds compiled patterns. It is safe for concurrent use.
type Extractor struct {
	names  *regexp2.Regexp
	dates  []*regexp2.Regexp
	places *regexp2.Regexp
	words  *regexp2.Regexp
}

// New compiles the default patterns.
func New() *Extractor {
	escaped := make([]string, len(Cities))
	for i, c := range Cities {
		escaped[i] = regexp2.Escape(c)
	}
	e := &Extractor{
		names: compile(`(?<!\p{L})\p{Lu}\p{Ll}+(?:[ \t]+\p{Lu}\p{Ll}+)+(?!\p{L})`, regexp2.None),
		dates: []*regexp2.Regexp{
			compile(`(?<!\d)(?:\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}[/\-]\d{1,2}[/\-]\d{1,2})(?!\d)`, regexp2.None),
			compile(`(?<!\w)\d{1,2}(?:st|nd|rd|th)?\s+(?:de\s+)?(?:`+months+`)(?!\w)\.?(?:,?\s+(?:de\s+)?\d{4}(?!\d))?`, regexp2.IgnoreCase),
			compile(`(?<!\w)(?:`+months+`)(?!\w)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?!\w)(?:,?\s+\d{4}(?!\d))?`, regexp2.IgnoreCase),
		},
		places: compile(`(?<!\p{L})(?:`+strings.Join(escaped, "|")+`)(?!\p{L})`, regexp2.None),
		words:  compile(`\w+`, regexp2.None),
	}
	return e
}

func compile(pattern string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, opts)
	re.MatchTimeout = MatchTimeout
	return re
}

// Extract analyses text.
func (e *Extractor) Extract(text string) (model.Extraction, error) {
	var out model.Extraction
	var err error

	if out.Names, err = findAll(e.names, text); err != nil {
		return model.Extraction{}, fmt.Errorf("names: %w", err)
	}
	for _, re := range e.dates {
		found, err := findAll(re, text)
		if err != nil {
			return model.Extraction{}, fmt.Errorf("dates: %w", err)
		}
		out.Dates = append(out.Dates, found...)
	}
	if out.Places, err = findAll(e.places, text); err != nil {
		return model.Extraction{}, fmt.Errorf("places: %w", err)
	}
	words, err := findAll(e.words, text)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("words: %w", err)
	}

	out.Names = unique(out.Names)
	out.Dates = unique(out.Dates)
	out.Places = unique(out.Places)
	out.WordCount = len(words)
	return out, nil
}

// File reads path and extracts from its contents. Invalid UTF-8 is dropped.
func (e *Extractor) File(path string) (model.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(strings.ToValidUTF8(string(data), ""))
}

var std = New()

// File extracts from path using the default patterns.
func File(path string) (model.Extraction, error) {
	return std.File(path)
}

func findAll(re *regexp2.Regexp, text string) ([]string, error) {
	var out []string
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		out = append(out, m.String())
		m, err = re.FindNextMatch(m)
	}
	return out, err
}

// unique returns the sorted distinct values, never nil.
func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
