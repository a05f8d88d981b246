package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/schema"
)

// MinDays and MaxDays bound the requested trip length.
const (
	MinDays = 1
	MaxDays = 14
)

// Request is a generation request.
type Request struct {
	Prompt string
	Days   int
}

// Validate rejects a blank prompt or an out-of-range day count.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	if r.Days < MinDays || r.Days > MaxDays {
		return fmt.Errorf("%w: days must be between %d and %d", domain.ErrValidation, MinDays, MaxDays)
	}
	return nil
}

// PersistencePolicy decides what a storage failure does to a generation
// that otherwise succeeded.
type PersistencePolicy string

const (
	// PersistBestEffort logs the failure and still completes, with a null id.
	PersistBestEffort PersistencePolicy = "best_effort"
	// PersistRequired turns the failure into an error.
	PersistRequired PersistencePolicy = "required"
)

// ParsePersistencePolicy maps a config value to a policy; empty means
// best effort.
func ParsePersistencePolicy(s string) (PersistencePolicy, error) {
	switch PersistencePolicy(s) {
	case "", PersistBestEffort:
		return PersistBestEffort, nil
	case PersistRequired:
		return PersistRequired, nil
	default:
		return "", fmt.Errorf("unknown persistence policy %q", s)
	}
}

// Store persists a generated itinerary. *service.ItineraryService satisfies it.
type Store interface {
	Create(ctx context.Context, owner domain.Owner, draft domain.Itinerary) (domain.Itinerary, error)
}

// Result is the outcome of a non-streaming generation.
type Result struct {
	// ID is nil when persistence failed under the best-effort policy.
	ID        *uuid.UUID
	Itinerary domain.Itinerary
}

// Service runs generations against one provider.
type Service struct {
	provider Provider
	prompts  *Prompts
	store    Store
	policy   PersistencePolicy
	log      *slog.Logger
	newID    func() string
	now      func() time.Time
}

// NewService wires a Service.
func NewService(p Provider, prompts *Prompts, store Store, policy PersistencePolicy, log *slog.Logger) *Service {
	return &Service{
		provider: p,
		prompts:  prompts,
		store:    store,
		policy:   policy,
		log:      log,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stream runs one streaming generation, reporting progress through emit.
//
// Request validation failures are returned before anything is emitted so the
// caller can answer 400. After that, every outcome is reported as exactly one
// terminal event and Stream returns nil, unless emit itself fails (the client
// went away), in which case that error is returned and the provider is
// cancelled.
func (s *Service) Stream(ctx context.Context, owner domain.Owner, req Request, emit func(Event) error) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("generation.Service.Stream: %w", err)
	}
	system, user, err := s.prompts.Render(req)
	if err != nil {
		return fmt.Errorf("generation.Service.Stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := NewSession(emit)
	if err := sess.Connect(); err != nil {
		return err
	}

	content, errs := s.provider.Stream(ctx, system, user)
	for delta := range content {
		if err := sess.Append(delta); err != nil {
			s.log.InfoContext(ctx, "stream consumer gone", "state", sess.State(), "error", err)
			return fmt.Errorf("generation.Service.Stream: emit: %w", err)
		}
	}
	if err := <-errs; err != nil {
		s.log.ErrorContext(ctx, "provider stream failed", "provider", s.provider.Name(), "error", err)
		return s.fail(sess, MsgGenerationFailed, fmt.Errorf("%w: %w", domain.ErrProvider, err))
	}

	text := sess.Text()
	if strings.TrimSpace(text) == "" {
		return s.fail(sess, MsgGenerationFailed, fmt.Errorf("%w: empty response", domain.ErrProvider))
	}

	it, err := schema.ValidateJSON([]byte(text))
	if err != nil {
		s.log.WarnContext(ctx, "generated itinerary rejected", "provider", s.provider.Name(), "error", err)
		return s.fail(sess, MsgValidationFailed, err)
	}

	it, id, err := s.persist(ctx, owner, req, it, true)
	if err != nil {
		return s.fail(sess, MsgPersistenceFailed, err)
	}
	return sess.Complete(it, id)
}

func (s *Service) fail(sess *Session, msg string, cause error) error {
	if err := sess.Fail(msg, cause); err != nil {
		return fmt.Errorf("generation.Service.Stream: emit: %w", err)
	}
	return nil
}

// Generate runs one non-streaming generation.
// Returns domain.ErrValidation for a bad request, domain.ErrProvider when the
// provider fails or returns an unusable document, and domain.ErrPersistence
// when storage fails under the required policy.
func (s *Service) Generate(ctx context.Context, owner domain.Owner, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("generation.Service.Generate: %w", err)
	}
	system, user, err := s.prompts.Render(req)
	if err != nil {
		return Result{}, fmt.Errorf("generation.Service.Generate: %w", err)
	}

	s.log.InfoContext(ctx, "generating itinerary", "provider", s.provider.Name(), "days", req.Days)
	text, err := s.provider.Complete(ctx, system, user)
	if err != nil {
		return Result{}, fmt.Errorf("generation.Service.Generate: %w: %w", domain.ErrProvider, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("generation.Service.Generate: %w: empty response", domain.ErrProvider)
	}

	it, err := schema.ValidateJSON([]byte(text))
	if err != nil {
		// Not the caller's fault, so ErrValidation must not leak through.
		return Result{}, fmt.Errorf("generation.Service.Generate: %w: invalid itinerary: %v", domain.ErrProvider, err)
	}

	it, id, err := s.persist(ctx, owner, req, it, false)
	if err != nil {
		return Result{}, fmt.Errorf("generation.Service.Generate: %w", err)
	}
	return Result{ID: id, Itinerary: it}, nil
}

// persist assigns ids and stores the itinerary. Under the best-effort policy
// a storage failure is logged and reported as a nil id with no error.
func (s *Service) persist(ctx context.Context, owner domain.Owner, req Request, it domain.Itinerary, streamed bool) (domain.Itinerary, *uuid.UUID, error) {
	it.AssignIdentifiers(s.newID)
	it.Config = domain.Config{
		GeneratedWith: req.Prompt,
		TotalDays:     req.Days,
		CreatedAt:     s.now(),
		IsStreamed:    streamed,
	}

	saved, err := s.store.Create(ctx, owner, it)
	if err != nil {
		s.log.ErrorContext(ctx, "itinerary not saved", "policy", s.policy, "error", err)
		if s.policy == PersistRequired {
			if !errors.Is(err, domain.ErrPersistence) {
				err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
			}
			return domain.Itinerary{}, nil, err
		}
		return it, nil, nil
	}
	s.log.InfoContext(ctx, "itinerary saved", "id", saved.ID, "streamed", streamed)
	id := saved.ID
	return saved, &id, nil
}
