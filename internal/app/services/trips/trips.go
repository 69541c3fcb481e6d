// Package trips implements trip creation, update and listing. Aggregates
// are always derived: TotalBudget is the sum of section budgets and
// TotalDays is the inclusive day span of the date range.
package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/system/htmlsanitize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/inputval"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/paging"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TripRepository is the subset of tripstore.Store the service needs.
type TripRepository interface {
	Create(ctx context.Context, t models.Trip) (models.Trip, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error)
	Replace(ctx context.Context, t models.Trip) error
	ListByUserEmail(ctx context.Context, email string) ([]models.Trip, error)
	ListAll(ctx context.Context, skip, limit int64) ([]models.Trip, error)
	Count(ctx context.Context) (int64, error)
	All(ctx context.Context) ([]models.Trip, error)
}

// UserDirectory answers whether a trip owner exists (userstore.Store).
type UserDirectory interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Config holds trip policy settings.
type Config struct {
	MinSections int // a trip must carry at least this many sections
}

// SectionInput is one section in a create or update request.
type SectionInput struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Budget     float64 `json:"budget" validate:"gte=0"`
	DaysToStay int     `json:"days_to_stay" validate:"gt=0"`
	DateRange  string  `json:"date_range" validate:"required,max=100"`
	IsEditable bool    `json:"is_editable"`
}

// CreateTripRequest is the input to CreateTrip. TotalBudget and TotalDays
// are accepted for compatibility and ignored.
type CreateTripRequest struct {
	Destination string         `json:"destination" validate:"required,max=200"`
	StartDate   time.Time      `json:"start_date" validate:"required"`
	EndDate     time.Time      `json:"end_date" validate:"required"`
	TotalBudget *float64       `json:"total_budget,omitempty"`
	TotalDays   *int           `json:"total_days,omitempty"`
	UserEmail   string         `json:"user_email,omitempty" validate:"omitempty,max=254,looseemail"`
	Sections    []SectionInput `json:"sections" validate:"dive"`
}

// UpdateTripRequest is a shallow patch: nil fields are left unchanged and a
// non-nil Sections replaces the whole list.
type UpdateTripRequest struct {
	Destination *string
	StartDate   *time.Time
	EndDate     *time.Time
	UserEmail   *string
	Sections    *[]SectionInput
	TotalBudget *float64 // ignored
	TotalDays   *int     // ignored
}

// TripPage is one page of ListAllTrips.
type TripPage struct {
	Trips []models.Trip `json:"trips"`
	Total int64         `json:"total"`
	Range paging.Range  `json:"range"`
}

// Service implements the trip lifecycle.
type Service struct {
	trips TripRepository
	users UserDirectory
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// New builds a Service. users may be nil, which disables the owner check.
func New(trips TripRepository, users UserDirectory, cfg Config, logger *zap.Logger) *Service {
	if cfg.MinSections < 0 {
		cfg.MinSections = 0
	}
	return &Service{trips: trips, users: users, cfg: cfg, log: logger, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) storeErr(op string, err error, fields ...zap.Field) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.log.Error(op, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, apperr.ErrPersistence)
}

func (req *CreateTripRequest) normalize() {
	req.Destination = normalize.Text(htmlsanitize.StripTags(req.Destination))
	req.UserEmail = normalize.Email(req.UserEmail)
	for i := range req.Sections {
		sec := &req.Sections[i]
		sec.Name = normalize.Text(htmlsanitize.StripTags(sec.Name))
		sec.DateRange = normalize.Text(htmlsanitize.StripTags(sec.DateRange))
	}
}

// validate checks req and returns every violation at once.
func (s *Service) validate(ctx context.Context, req *CreateTripRequest) error {
	req.normalize()

	res := inputval.Validate(req)
	if len(req.Sections) < s.cfg.MinSections {
		res.Add("sections", "min", fmt.Sprintf("sections must contain at least %d item(s).", s.cfg.MinSections))
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() &&
		models.DateOnly(req.EndDate).Before(models.DateOnly(req.StartDate)) {
		res.Add("end_date", "gtefield", "end_date must not be before start_date.")
	}
	if res.HasErrors() {
		return res.Err()
	}

	if req.UserEmail != "" && s.users != nil {
		ok, err := s.users.ExistsByEmail(ctx, req.UserEmail)
		if err != nil {
			return s.storeErr("check trip owner", err, zap.String("user_email", req.UserEmail))
		}
		if !ok {
			return apperr.Invalid("user_email", "exists", "user_email does not belong to an account.")
		}
	}
	return nil
}

// build turns a validated request into a trip with derived aggregates.
func build(req CreateTripRequest) models.Trip {
	sections := make([]models.Section, len(req.Sections))
	for i, in := range req.Sections {
		sections[i] = models.Section{
			Name:       in.Name,
			Budget:     in.Budget,
			DaysToStay: in.DaysToStay,
			DateRange:  in.DateRange,
			IsEditable: in.IsEditable,
		}
	}
	start := models.DateOnly(req.StartDate)
	end := models.DateOnly(req.EndDate)
	return models.Trip{
		Destination: req.Destination,
		StartDate:   start,
		EndDate:     end,
		TotalDays:   models.SpanDays(start, end),
		TotalBudget: models.SectionBudget(sections),
		UserEmail:   req.UserEmail,
		Sections:    sections,
	}
}

// CreateTrip validates req, derives its aggregates and stores it.
func (s *Service) CreateTrip(ctx context.Context, req CreateTripRequest) (string, error) {
	if err := s.validate(ctx, &req); err != nil {
		return "", err
	}

	t := build(req)
	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	created, err := s.trips.Create(ctx, t)
	if err != nil {
		return "", s.storeErr("create trip", err, zap.String("destination", t.Destination))
	}
	s.log.Info("trip created",
		zap.String("trip_id", created.ID.Hex()),
		zap.String("user_email", created.UserEmail),
		zap.Float64("total_budget", created.TotalBudget))
	return created.ID.Hex(), nil
}

// UpdateTrip merges req onto the stored trip, re-validates, re-derives the
// aggregates and stores the result. Concurrent updates are last write wins.
func (s *Service) UpdateTrip(ctx context.Context, id string, req UpdateTripRequest) (string, error) {
	existing, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}

	merged := requestFrom(*existing)
	if req.Destination != nil {
		merged.Destination = *req.Destination
	}
	if req.StartDate != nil {
		merged.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		merged.EndDate = *req.EndDate
	}
	if req.UserEmail != nil {
		merged.UserEmail = *req.UserEmail
	}
	if req.Sections != nil {
		merged.Sections = append([]SectionInput(nil), (*req.Sections)...)
	}

	if err := s.validate(ctx, &merged); err != nil {
		return "", err
	}

	t := build(merged)
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now().UTC()

	if err := s.trips.Replace(ctx, t); err != nil {
		return "", s.storeErr("update trip", err, zap.String("trip_id", id))
	}
	s.log.Info("trip updated", zap.String("trip_id", id))
	return id, nil
}

// requestFrom rebuilds the create request a stored trip corresponds to.
func requestFrom(t models.Trip) CreateTripRequest {
	sections := make([]SectionInput, len(t.Sections))
	for i, sec := range t.Sections {
		sections[i] = SectionInput{
			Name:       sec.Name,
			Budget:     sec.Budget,
			DaysToStay: sec.DaysToStay,
			DateRange:  sec.DateRange,
			IsEditable: sec.IsEditable,
		}
	}
	return CreateTripRequest{
		Destination: t.Destination,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		UserEmail:   t.UserEmail,
		Sections:    sections,
	}
}

func (s *Service) get(ctx context.Context, id string) (*models.Trip, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	t, err := s.trips.GetByID(ctx, oid)
	if err != nil {
		return nil, s.storeErr("get trip", err, zap.String("trip_id", id))
	}
	return t, nil
}

// GetTrip returns one trip or apperr.ErrNotFound.
func (s *Service) GetTrip(ctx context.Context, id string) (models.Trip, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return models.Trip{}, err
	}
	return *t, nil
}

// ListTripsForUser returns the trips owned by email, newest first.
func (s *Service) ListTripsForUser(ctx context.Context, email string) ([]models.Trip, error) {
	out, err := s.trips.ListByUserEmail(ctx, normalize.Email(email))
	if err != nil {
		return nil, s.storeErr("list user trips", err, zap.String("user_email", email))
	}
	return out, nil
}

// ListAllTrips returns one page of every trip, newest first.
func (s *Service) ListAllTrips(ctx context.Context, p paging.Page) (TripPage, error) {
	p = p.Normalize()

	rows, err := s.trips.ListAll(ctx, p.Skip(), p.LimitPlusOne())
	if err != nil {
		return TripPage{}, s.storeErr("list trips", err)
	}
	hasNext := paging.Trim(&rows, p.Size)

	total, err := s.trips.Count(ctx)
	if err != nil {
		return TripPage{}, s.storeErr("count trips", err)
	}
	return TripPage{
		Trips: rows,
		Total: total,
		Range: paging.ComputeRange(p, len(rows), hasNext),
	}, nil
}

// AllTrips returns every trip; used for analytics.
func (s *Service) AllTrips(ctx context.Context) ([]models.Trip, error) {
	out, err := s.trips.All(ctx)
	if err != nil {
		return nil, s.storeErr("load trips", err)
	}
	return out, nil
}
