package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Image is a photo handed to the analysis providers.
type Image struct {
	Name     string
	Size     int64
	ModTime  time.Time
	MIMEType string
	Data     []byte
}

// ProviderResult is the normalized output of one provider.
type ProviderResult struct {
	Tags   []string `json:"tags"`
	Labels []string `json:"labels"`
}

// emptyResult is what a failed provider contributes to an Analysis.
func emptyResult() ProviderResult {
	return ProviderResult{Tags: []string{}, Labels: []string{}}
}

// Provider analyzes an image with one external service.
type Provider interface {
	Name() string
	// Analyze returns a normalized result or a *ProviderError.
	Analyze(ctx context.Context, img Image) (*ProviderResult, error)
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// KindUnavailable means the provider could not be reached or refused the call.
	KindUnavailable ErrorKind = "unavailable"
	// KindBadResponse means the provider answered with something unparseable.
	KindBadResponse ErrorKind = "bad_response"
	// KindEmpty means the provider answered without any tags.
	KindEmpty ErrorKind = "empty"
)

// ProviderError is a typed provider failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerErr(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// ErrorKindOf returns the kind of a provider failure. Untyped errors count as
// unavailable.
func ErrorKindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// Analysis is the merged output of all configured providers, keyed by
// provider name. Every configured provider has an entry; failed providers
// contribute empty lists.
type Analysis struct {
	Providers map[string]ProviderResult
	CreatedAt time.Time
	// Cached is set when the analysis was served from the cache.
	Cached bool
}

// Tags returns all provider tags in provider name order.
func (a *Analysis) Tags() []string {
	var out []string
	for _, name := range a.names() {
		out = append(out, a.Providers[name].Tags...)
	}
	return out
}

// Labels returns all provider labels in provider name order.
func (a *Analysis) Labels() []string {
	var out []string
	for _, name := range a.names() {
		out = append(out, a.Providers[name].Labels...)
	}
	return out
}

func (a *Analysis) names() []string {
	names := make([]string, 0, len(a.Providers))
	for name := range a.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize trims tags and labels, drops blanks and duplicates, and never
// returns nil slices.
func normalize(tags, labels []string) *ProviderResult {
	return &ProviderResult{Tags: cleanList(tags), Labels: cleanList(labels)}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
