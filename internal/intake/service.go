// Package intake turns a user's photo and form edits into a persisted
// wardrobe item.
package intake

import (
	"context"
	"errors"
	"strings"

	"github.com/raine/wardrobe/internal/dispatch"
	"github.com/raine/wardrobe/internal/llm"
	"github.com/raine/wardrobe/internal/tagmap"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

// Analyzer produces tags for an image. ok is false when no provider answered.
type Analyzer interface {
	Analyze(ctx context.Context, img llm.Image) (analysis *llm.Analysis, ok bool)
}

// Uploader stores a photo and returns its durable URL. Remove releases a
// stored photo best-effort.
type Uploader interface {
	Upload(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error)
	Remove(ctx context.Context, url string)
}

// Dispatcher persists mutations.
type Dispatcher interface {
	Dispatch(ctx context.Context, m dispatch.Mutation) (dispatch.Attempt, error)
}

var (
	_ Analyzer   = (*llm.Reconciler)(nil)
	_ Uploader   = (*dispatch.Coordinator)(nil)
	_ Dispatcher = (*dispatch.Dispatcher)(nil)
)

// Source tells where suggested fields came from.
type Source string

const (
	SourceAnalysis Source = "analysis"
	SourceFilename Source = "filename"
)

// Suggestion is the set of fields derived from a photo.
type Suggestion struct {
	Source   Source
	Fields   tagmap.Fields
	Analysis *llm.Analysis
}

// Values returns the suggestion as form values.
func (s Suggestion) Values() map[wardrobe.Field]string {
	return map[wardrobe.Field]string{
		wardrobe.FieldName:        s.Fields.Name,
		wardrobe.FieldCategory:    s.Fields.Category,
		wardrobe.FieldColor:       s.Fields.Color,
		wardrobe.FieldMaterial:    s.Fields.Material,
		wardrobe.FieldBrand:       s.Fields.Brand,
		wardrobe.FieldDescription: s.Fields.Description,
		wardrobe.FieldSeason:      strings.Join(s.Fields.Season, ", "),
		wardrobe.FieldOccasion:    strings.Join(s.Fields.Occasion, ", "),
	}
}

// Submission is one add-item request.
type Submission struct {
	OwnerID string
	// Photo is optional; without it the form must be complete on its own.
	Photo *wardrobe.Photo
	// Form holds the user's own edits. They always take precedence over
	// suggested values.
	Form wardrobe.FormState
	// IdempotencyKey is reused when the caller retries the same submission.
	IdempotencyKey string
}

// Result is the outcome of a successful submission.
type Result struct {
	Item       wardrobe.Item
	Form       wardrobe.FormState
	Suggestion *Suggestion
	Attempt    dispatch.Attempt
}

// Service runs the intake pipeline.
type Service struct {
	analyzer   Analyzer
	uploader   Uploader
	dispatcher Dispatcher
}

// NewService creates a service. analyzer may be nil, in which case only the
// filename heuristic is used.
func NewService(analyzer Analyzer, uploader Uploader, dispatcher Dispatcher) *Service {
	return &Service{analyzer: analyzer, uploader: uploader, dispatcher: dispatcher}
}

// Suggest analyzes photo and maps the result to fields. When no provider
// produced anything it falls back to guessing from the file name. It never
// fails.
func (s *Service) Suggest(ctx context.Context, photo wardrobe.Photo) Suggestion {
	if s.analyzer != nil {
		analysis, ok := s.analyzer.Analyze(ctx, imageOf(photo))
		if ok {
			fields := tagmap.Map(analysis.Tags(), analysis.Labels()...)
			log.Debug().
				Str("file", photo.Name).
				Bool("cached", analysis.Cached).
				Str("category", fields.Category).
				Msg("fields derived from analysis")
			return Suggestion{Source: SourceAnalysis, Fields: fields, Analysis: analysis}
		}
	}

	fields := tagmap.FromFilename(photo.Name)
	log.Info().
		Str("file", photo.Name).
		Str("category", fields.Category).
		Msg("no analysis available, guessing from file name")
	return Suggestion{Source: SourceFilename, Fields: fields}
}

// Submit uploads the photo, fills the form with suggested values the user
// left empty and creates the item.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.OwnerID == "" {
		return nil, errors.New("not signed in")
	}

	form := sub.Form
	var suggestion *Suggestion
	var photoURL string

	if sub.Photo != nil {
		photo := *sub.Photo
		if err := wardrobe.CheckUpload(photo.Size, photo.MIMEType); err != nil {
			return nil, err
		}

		url, err := s.uploader.Upload(ctx, sub.OwnerID, photo)
		if err != nil {
			return nil, err
		}
		photoURL = url

		sug := s.Suggest(ctx, photo)
		suggestion = &sug
		form = wardrobe.Reduce(form, wardrobe.Prefill(sug.Values()))
		form = wardrobe.Reduce(form, wardrobe.SetField(wardrobe.FieldImageURL, url))
	}

	item, err := form.Item(sub.OwnerID)
	if err != nil {
		s.discardPhoto(ctx, photoURL)
		return nil, err
	}

	attempt, err := s.dispatcher.Dispatch(ctx, dispatch.Mutation{
		Op:             dispatch.OpCreate,
		Item:           item,
		IdempotencyKey: sub.IdempotencyKey,
	})
	if err != nil {
		s.discardPhoto(ctx, photoURL)
		return nil, err
	}

	return &Result{
		Item:       *attempt.Record,
		Form:       form,
		Suggestion: suggestion,
		Attempt:    attempt,
	}, nil
}

// discardPhoto releases a photo uploaded for an item that was never created.
func (s *Service) discardPhoto(ctx context.Context, url string) {
	if url == "" {
		return
	}
	log.Info().Str("url", url).Msg("item not created, removing uploaded photo")
	s.uploader.Remove(ctx, url)
}

func imageOf(p wardrobe.Photo) llm.Image {
	return llm.Image{
		Name:     p.Name,
		Size:     p.Size,
		ModTime:  p.ModTime,
		MIMEType: p.MIMEType,
		Data:     p.Data,
	}
}
