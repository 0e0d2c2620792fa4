// Package sanitizer normalizes free-form user input before validation:
// display text is whitespace-collapsed, enum-like values are lowercased and
// phone numbers are rewritten to E.164 where they parse.
package sanitizer
