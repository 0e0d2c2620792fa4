package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reWhitespace = regexp.MustCompile(`\s+`)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func lower(s string) string {
	return strings.ToLower(s)
}

func collapseWhitespace(s string) string {
	return reWhitespace.ReplaceAllString(s, " ")
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// CleanText is for names, addresses and short labels.
func CleanText(input string) string {
	return Pipeline{stripControl, collapseWhitespace, trim}.Apply(input)
}

// CleanParagraph keeps line breaks, for descriptions.
func CleanParagraph(input string) string {
	return Pipeline{stripControl, trim}.Apply(input)
}

// CleanKeyword is for enum-like values such as day names or emergency types.
func CleanKeyword(input string) string {
	return Pipeline{stripControl, trim, lower}.Apply(input)
}

func CleanID(input string) string {
	return Pipeline{stripControl, trim}.Apply(input)
}
