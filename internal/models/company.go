package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type CompanyDomain struct {
	Domain string            `json:"domain"`
	Name   string            `json:"name"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// DisplayName falls back to the capitalised first label of the domain.
func (c CompanyDomain) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return NameFromDomain(c.Domain)
}

// NameFromDomain turns "microsoft.com" into "Microsoft".
func NameFromDomain(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return domain
	}
	first, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(first)) + strings.ToLower(label[size:])
}

// QueryResult is one question/answer exchange. A failed turn carries Error
// and has neither Answer nor Structured.
type QueryResult struct {
	ID         string         `json:"id"`
	Domain     string         `json:"domain"`
	Question   string         `json:"question"`
	Answer     string         `json:"answer,omitempty"`
	Model      string         `json:"model,omitempty"`
	Knowledge  []string       `json:"knowledge,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (r QueryResult) Failed() bool {
	return r.Error != ""
}

// Clone returns a deep copy so stored entries can't be changed through the
// caller's maps or slices.
func (r QueryResult) Clone() QueryResult {
	out := r
	if r.Knowledge != nil {
		out.Knowledge = append([]string(nil), r.Knowledge...)
	}
	if r.Structured != nil {
		out.Structured = make(map[string]any, len(r.Structured))
		for k, v := range r.Structured {
			if items, ok := v.([]string); ok {
				v = append([]string(nil), items...)
			}
			out.Structured[k] = v
		}
	}
	return out
}
