// Package dispatch persists item mutations and photo uploads. Each
// operation tries the caller's direct path first and, when that fails for
// any reason, retries once through the trusted relay.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/raine/wardrobe/internal/metrics"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

// ErrNoRows is reported when the primary path succeeded without touching
// any row, which some store policies do silently.
var ErrNoRows = errors.New("primary write affected no rows")

// Operation is the kind of mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Path identifies a write route.
type Path string

const (
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// Outcome is the terminal state of a dispatch.
type Outcome string

const (
	// OutcomeSuccess means the primary path persisted the record.
	OutcomeSuccess Outcome = "success"
	// OutcomeRecovered means the primary path failed and the fallback
	// persisted the record.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeFailed means no path persisted the record.
	OutcomeFailed Outcome = "failed"
)

// Mutation is one logical write requested by a caller.
type Mutation struct {
	Op   Operation
	Item wardrobe.Item
	// IdempotencyKey identifies the logical write across both paths.
	// Generated when empty; a create uses it as the item id.
	IdempotencyKey string
}

// PathAttempt records one route tried during a dispatch.
type PathAttempt struct {
	Path  Path
	Err   error
	Class FailureClass
}

// Attempt is the transient record of one dispatch cycle.
type Attempt struct {
	Mutation Mutation
	Paths    []PathAttempt
	Outcome  Outcome
	Record   *wardrobe.Item
}

// MutationError is an unrecoverable dispatch failure. Its message is meant
// for the user.
type MutationError struct {
	Op      Operation
	Message string
	Err     error
}

func (e *MutationError) Error() string { return e.Message }

func (e *MutationError) Unwrap() error { return e.Err }

// DispatcherOpts wires a Dispatcher.
type DispatcherOpts struct {
	Primary  PrimaryStore
	Fallback FallbackStore
	// Session is refreshed before each primary attempt when set.
	Session SessionRefresher
	// Collection receives successful mutations when set.
	Collection *wardrobe.Collection
	// Assets removes the photo of a deleted item when set.
	Assets AssetRemover
}

// Dispatcher runs mutations with fallback.
type Dispatcher struct {
	primary    PrimaryStore
	fallback   FallbackStore
	session    SessionRefresher
	collection *wardrobe.Collection
	assets     AssetRemover
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	return &Dispatcher{
		primary:    opts.Primary,
		fallback:   opts.Fallback,
		session:    opts.Session,
		collection: opts.Collection,
		assets:     opts.Assets,
	}
}

// Dispatch persists m. The fallback path is tried at most once and only
// after the primary path's outcome is known. The returned error is nil or a
// *MutationError.
func (d *Dispatcher) Dispatch(ctx context.Context, m Mutation) (Attempt, error) {
	if m.IdempotencyKey == "" {
		m.IdempotencyKey = uuid.NewString()
	}
	if m.Op == OpCreate && m.Item.ID == "" {
		m.Item.ID = m.IdempotencyKey
	}
	attempt := Attempt{Mutation: m}

	if err := d.precheck(m); err != nil {
		attempt.Outcome = OutcomeFailed
		return attempt, &MutationError{Op: m.Op, Message: err.Error(), Err: err}
	}

	logger := log.With().
		Str("op", string(m.Op)).
		Str("itemId", m.Item.ID).
		Str("idempotencyKey", m.IdempotencyKey).
		Logger()

	if d.session != nil {
		if err := d.session.RefreshSession(ctx); err != nil {
			logger.Warn().Err(err).Msg("session refresh failed, continuing with current token")
		}
	}

	record, primaryErr := d.runPrimary(ctx, m)
	metrics.DispatchAttempts.WithLabelValues(string(m.Op), string(PathPrimary), metrics.Outcome(primaryErr)).Inc()
	if primaryErr == nil {
		attempt.Paths = append(attempt.Paths, PathAttempt{Path: PathPrimary})
		attempt.Outcome = OutcomeSuccess
		attempt.Record = record
		d.apply(ctx, m, record)
		logger.Info().Msg("mutation persisted")
		return attempt, nil
	}

	class := Classify(primaryErr)
	attempt.Paths = append(attempt.Paths, PathAttempt{Path: PathPrimary, Err: primaryErr, Class: class})
	metrics.DispatchFallbacks.WithLabelValues(string(m.Op), string(class)).Inc()
	logger.Warn().Err(primaryErr).Str("class", string(class)).Msg("primary write failed, using relay")

	record, fallbackErr := d.runFallback(ctx, m)
	metrics.DispatchAttempts.WithLabelValues(string(m.Op), string(PathFallback), metrics.Outcome(fallbackErr)).Inc()
	if fallbackErr != nil {
		attempt.Paths = append(attempt.Paths, PathAttempt{Path: PathFallback, Err: fallbackErr})
		attempt.Outcome = OutcomeFailed
		logger.Error().Err(fallbackErr).Msg("relay write failed")
		return attempt, &MutationError{
			Op:      m.Op,
			Message: fallbackErr.Error(),
			Err:     errors.Join(primaryErr, fallbackErr),
		}
	}

	attempt.Paths = append(attempt.Paths, PathAttempt{Path: PathFallback})
	attempt.Outcome = OutcomeRecovered
	attempt.Record = record
	d.apply(ctx, m, record)
	logger.Info().Msg("mutation persisted through relay")
	return attempt, nil
}

// precheck rejects mutations no path could accept.
func (d *Dispatcher) precheck(m Mutation) error {
	switch m.Op {
	case OpCreate:
		return wardrobe.Validate(m.Item)
	case OpUpdate:
		if m.Item.ID == "" {
			return errors.New("item id is required")
		}
		if err := wardrobe.Validate(m.Item); err != nil {
			return err
		}
		if d.collection != nil {
			if prev, ok := d.collection.Get(m.Item.ID); ok {
				return wardrobe.CheckUpdate(prev, m.Item)
			}
		}
		return nil
	case OpDelete:
		if m.Item.ID == "" || m.Item.UserID == "" {
			return errors.New("item id and owner are required")
		}
		return nil
	default:
		return fmt.Errorf("unknown operation %q", m.Op)
	}
}

func (d *Dispatcher) runPrimary(ctx context.Context, m Mutation) (record *wardrobe.Item, err error) {
	if d.primary == nil {
		return nil, errors.New("primary store not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			record, err = nil, fmt.Errorf("primary write panicked: %v", r)
		}
	}()

	var rows []wardrobe.Item
	switch m.Op {
	case OpCreate:
		rows, err = d.primary.Insert(ctx, m.Item)
	case OpUpdate:
		var patch map[string]any
		if patch, err = m.Item.Patch(); err != nil {
			return nil, err
		}
		rows, err = d.primary.Update(ctx, m.Item.ID, m.Item.UserID, patch)
	case OpDelete:
		rows, err = d.primary.Delete(ctx, m.Item.ID, m.Item.UserID)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

func (d *Dispatcher) runFallback(ctx context.Context, m Mutation) (*wardrobe.Item, error) {
	if d.fallback == nil {
		return nil, errors.New("relay not configured")
	}

	switch m.Op {
	case OpCreate:
		return d.fallback.AddItem(ctx, m.IdempotencyKey, m.Item)
	case OpUpdate:
		return d.fallback.UpdateItem(ctx, m.IdempotencyKey, m.Item)
	default:
		return d.fallback.DeleteItem(ctx, m.IdempotencyKey, m.Item.ID, m.Item.UserID)
	}
}

// apply reflects a persisted mutation in the collection and releases the
// photo of a deleted item.
func (d *Dispatcher) apply(ctx context.Context, m Mutation, record *wardrobe.Item) {
	switch m.Op {
	case OpCreate:
		if d.collection != nil {
			d.collection.Append(*record)
		}
	case OpUpdate:
		if d.collection != nil {
			d.collection.Replace(*record)
		}
	case OpDelete:
		imageURL := record.ImageURL
		if imageURL == "" {
			imageURL = m.Item.ImageURL
		}
		if d.collection != nil {
			if prev, ok := d.collection.Get(m.Item.ID); ok && imageURL == "" {
				imageURL = prev.ImageURL
			}
			d.collection.Remove(m.Item.ID)
		}
		if d.assets != nil && imageURL != "" {
			d.assets.Remove(ctx, imageURL)
		}
	}
}
