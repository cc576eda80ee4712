package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"venuehours/internal/database"
	"venuehours/internal/events"
	"venuehours/internal/hours"
	"venuehours/internal/metrics"
)

// MaxScheduleDays bounds the window of Schedule and the exports.
const MaxScheduleDays = 90

// PreviewDays is how many days a preview lays out after now.
const PreviewDays = 7

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrLocationInactive = errors.New("location is inactive")
	ErrOverrideNotFound = errors.New("override not found")
	ErrInvalidRange     = errors.New("invalid date range")
)

// Store is the persistence the service reads schedules from.
type Store interface {
	GetLocation(ctx context.Context, id int64) (*database.Location, error)
	GetWeeklySchedule(ctx context.Context, locationID int64) (*hours.WeeklySchedule, error)
	ListOverrides(ctx context.Context, locationID int64, f database.OverrideFilter) ([]database.Override, error)
	CreateOverride(ctx context.Context, o *database.Override) error
	DeleteOverride(ctx context.Context, locationID int64, id string) error
}

// StatusCache memoizes statuses per location and minute.
type StatusCache interface {
	Get(ctx context.Context, locationID int64, at time.Time) (hours.OpenStatus, bool)
	Set(ctx context.Context, locationID int64, at time.Time, st hours.OpenStatus) error
	InvalidateLocation(ctx context.Context, locationID int64) (int, error)
	InvalidateAll(ctx context.Context) (int, error)
}

// StatusResult is an OpenStatus tied to the location and instant it answers.
type StatusResult struct {
	LocationID int64     `json:"location_id"`
	At         time.Time `json:"at"`
	hours.OpenStatus
}

// DayEntry is one day of a merged schedule in wire form.
type DayEntry struct {
	Date       string       `json:"date"`
	IsOpen     bool         `json:"is_open"`
	Hours      *hours.Hours `json:"hours,omitempty"`
	Source     hours.Source `json:"source"`
	OverrideID string       `json:"override_id,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// NewDayEntry converts a resolved day.
func NewDayEntry(d hours.DaySchedule) DayEntry {
	e := DayEntry{
		Date:   d.Date.Format(hours.DateLayout),
		IsOpen: !d.Closed,
		Hours:  d.Hours(),
		Source: d.Source,
		Reason: d.Reason(),
	}
	if d.Rule != nil {
		e.OverrideID = d.Rule.ID
	}
	if d.Err != nil {
		e.Error = d.Err.Error()
	}
	return e
}

// PreviewResult shows how a provisional schedule would behave.
type PreviewResult struct {
	Status   hours.OpenStatus `json:"status"`
	Days     []DayEntry       `json:"days"`
	Problems []string         `json:"problems,omitempty"`
}

// ExportData is everything the calendar and spreadsheet exports render.
type ExportData struct {
	Location  database.Location
	Overrides []database.Override
	Days      []hours.DaySchedule
}

// HoursService answers schedule questions for stored locations.
type HoursService struct {
	store  Store
	cache  StatusCache
	engine *hours.Engine
	bus    *events.EventBus
	logger *zerolog.Logger
}

// NewHoursService wires the service. cache may be nil. When bus is given the
// service drops cached statuses on reload and override events.
func NewHoursService(store Store, cache StatusCache, engine *hours.Engine, bus *events.EventBus, logger *zerolog.Logger) *HoursService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HoursService{store: store, cache: cache, engine: engine, bus: bus, logger: logger}
	if bus != nil {
		bus.Subscribe(events.LocationsReloaded, s.invalidate)
		bus.Subscribe(events.OverridesChanged, s.invalidate)
	}
	return s
}

// Engine exposes the engine the service evaluates with.
func (s *HoursService) Engine() *hours.Engine {
	return s.engine
}

func (s *HoursService) location(ctx context.Context, id int64) (*database.Location, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	if !loc.IsActive {
		return nil, fmt.Errorf("%w: %d", ErrLocationInactive, id)
	}
	return loc, nil
}

// calendar loads a location's stored week and active rules into the engine.
func (s *HoursService) calendar(ctx context.Context, id int64) (*hours.Calendar, error) {
	week, err := s.store.GetWeeklySchedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get weekly schedule %d: %w", id, err)
	}
	overrides, err := s.store.ListOverrides(ctx, id, database.OverrideFilter{})
	if err != nil {
		return nil, fmt.Errorf("list overrides %d: %w", id, err)
	}
	return s.engine.Calendar(week, database.Rules(overrides)), nil
}

// Status reports whether a location is open at now.
func (s *HoursService) Status(ctx context.Context, locationID int64, now time.Time) (*StatusResult, error) {
	if _, err := s.location(ctx, locationID); err != nil {
		return nil, err
	}

	at := now.In(s.engine.Config().Location)
	res := &StatusResult{LocationID: locationID, At: at}

	if s.cache != nil {
		if st, ok := s.cache.Get(ctx, locationID, at); ok {
			metrics.IncCache(true)
			res.OpenStatus = st
			return res, nil
		}
		metrics.IncCache(false)
	}

	cal, err := s.calendar(ctx, locationID)
	if err != nil {
		return nil, err
	}

	st, dqErr := cal.Status(at)
	s.reportDataQuality(locationID, dqErr)
	metrics.IncStatus(st.IsOpen)
	res.OpenStatus = st

	if s.cache != nil {
		if err := s.cache.Set(ctx, locationID, at, st); err != nil {
			s.logger.Error().Err(err).Int64("location_id", locationID).Msg("status cache write failed")
		}
	}
	return res, nil
}

// Schedule returns the merged per-day schedule from from to to inclusive.
func (s *HoursService) Schedule(ctx context.Context, locationID int64, from, to time.Time) ([]DayEntry, error) {
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.location(ctx, locationID); err != nil {
		return nil, err
	}

	cal, err := s.calendar(ctx, locationID)
	if err != nil {
		return nil, err
	}
	days := cal.Range(from, to)
	s.reportDays(locationID, cal, days)

	out := make([]DayEntry, 0, len(days))
	for _, d := range days {
		out = append(out, NewDayEntry(d))
	}
	return out, nil
}

// Export gathers a location, the active overrides touching the window and
// the merged schedule of every day in it.
func (s *HoursService) Export(ctx context.Context, locationID int64, from, to time.Time) (*ExportData, error) {
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	loc, err := s.location(ctx, locationID)
	if err != nil {
		return nil, err
	}

	cal, err := s.calendar(ctx, locationID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.ListOverrides(ctx, locationID, database.OverrideFilter{
		Start: hours.DateOf(from).Format(hours.DateLayout),
		End:   hours.DateOf(to).Format(hours.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("list overrides %d: %w", locationID, err)
	}

	days := cal.Range(from, to)
	s.reportDays(locationID, cal, days)
	return &ExportData{Location: *loc, Overrides: overrides, Days: days}, nil
}

// Preview evaluates an unsaved week and rule set. Nothing is read from or
// written to the store; base may be nil to preview against the default week.
func (s *HoursService) Preview(now time.Time, base *hours.WeeklySchedule, rules []hours.OverrideRule) PreviewResult {
	cal := s.engine.Calendar(base, rules)
	at := now.In(s.engine.Config().Location)

	st, err := cal.Status(at)
	res := PreviewResult{Status: st}

	start := hours.DateOf(at)
	for _, d := range cal.Range(start, start.AddDate(0, 0, PreviewDays-1)) {
		res.Days = append(res.Days, NewDayEntry(d))
	}

	seen := make(map[string]bool)
	for _, e := range unwrap(err) {
		if msg := e.Error(); !seen[msg] {
			seen[msg] = true
			res.Problems = append(res.Problems, msg)
		}
	}
	for _, d := range res.Days {
		if d.Error != "" && !seen[d.Error] {
			seen[d.Error] = true
			res.Problems = append(res.Problems, d.Error)
		}
	}
	return res
}

// ListOverrides returns the overrides of an existing location.
func (s *HoursService) ListOverrides(ctx context.Context, locationID int64, f database.OverrideFilter) ([]database.Override, error) {
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrLocationNotFound, locationID)
		}
		return nil, err
	}
	return s.store.ListOverrides(ctx, locationID, f)
}

// CreateOverride stores a rule for a location and drops its cached statuses.
func (s *HoursService) CreateOverride(ctx context.Context, locationID int64, rule hours.OverrideRule) (*database.Override, error) {
	if _, err := s.location(ctx, locationID); err != nil {
		return nil, err
	}

	o := &database.Override{
		OverrideRule: rule,
		LocationID:   locationID,
		IsActive:     true,
		Origin:       database.OriginAPI,
	}
	if err := s.store.CreateOverride(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("location_id", locationID).Str("override_id", o.ID).
		Str("type", string(o.Type)).Msg("override created")
	s.overridesChanged(ctx, locationID)
	return o, nil
}

// DeleteOverride removes a rule and drops the location's cached statuses.
func (s *HoursService) DeleteOverride(ctx context.Context, locationID int64, id string) error {
	err := s.store.DeleteOverride(ctx, locationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrOverrideNotFound, id)
	}
	if err != nil {
		return err
	}

	s.logger.Info().Int64("location_id", locationID).Str("override_id", id).Msg("override deleted")
	s.overridesChanged(ctx, locationID)
	return nil
}

// ValidateRange checks a schedule window.
func ValidateRange(from, to time.Time) error {
	from, to = hours.DateOf(from), hours.DateOf(to)
	if from.After(to) {
		return fmt.Errorf("%w: start must be before or equal to end", ErrInvalidRange)
	}
	if days := int(to.Sub(from).Hours() / 24); days > MaxScheduleDays {
		return fmt.Errorf("%w: exceeds maximum of %d days", ErrInvalidRange, MaxScheduleDays)
	}
	return nil
}

// reportDays reports the rule errors of cal and the day errors of days.
func (s *HoursService) reportDays(locationID int64, cal *hours.Calendar, days []hours.DaySchedule) {
	s.reportDataQuality(locationID, cal.Err())
	for _, d := range days {
		s.reportDataQuality(locationID, d.Err)
	}
}

func (s *HoursService) reportDataQuality(locationID int64, err error) {
	for _, e := range unwrap(err) {
		metrics.IncDataQuality(e)
		s.logger.Warn().Err(e).Int64("location_id", locationID).
			Str("kind", metrics.ErrorKind(e)).Msg("schedule data treated as closed")
	}
}

// overridesChanged announces an override write. Without a bus the cache is
// dropped directly.
func (s *HoursService) overridesChanged(ctx context.Context, locationID int64) {
	if s.bus == nil {
		s.invalidateLocation(ctx, locationID)
		return
	}
	if err := s.bus.Publish(events.NewLocationsEvent(events.OverridesChanged, locationID)); err != nil {
		s.logger.Error().Err(err).Int64("location_id", locationID).Msg("overrides changed handlers failed")
	}
}

func (s *HoursService) invalidateLocation(ctx context.Context, locationID int64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.InvalidateLocation(ctx, locationID); err != nil {
		s.logger.Error().Err(err).Int64("location_id", locationID).Msg("status cache invalidation failed")
	}
}

// invalidate handles reload and override events.
func (s *HoursService) invalidate(e events.Event) error {
	if s.cache == nil {
		return nil
	}
	ctx := context.Background()

	ids, err := e.Locations()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		_, err = s.cache.InvalidateAll(ctx)
		return err
	}

	var errs []error
	for _, id := range ids {
		if _, err := s.cache.InvalidateLocation(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("invalidate location %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// unwrap flattens an errors.Join tree into its leaves.
func unwrap(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, unwrap(e)...)
		}
		return out
	}
	return []error{err}
}
