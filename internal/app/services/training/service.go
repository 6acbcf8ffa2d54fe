package training

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/metrics"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/services/achievements"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	dailyStatsDays = 30
)

// Service records training sessions and reports per-user training statistics.
type Service struct {
	store        storage.Store
	achievements *achievements.Service
	presets      training.Presets
	cache        cache.Cache
	log          *logger.Logger
	now          services.Clock
	loc          *time.Location
}

// New constructs a training service. A nil presets catalog uses the built-in
// one.
func New(store storage.Store, ach *achievements.Service, presets training.Presets, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("training")
	}
	if presets == nil {
		presets = training.DefaultPresets()
	}
	if ach == nil {
		ach = achievements.New(store, log)
	}
	return &Service{
		store:        store,
		achievements: ach,
		presets:      presets,
		cache:        cache.Nop{},
		log:          log,
		now:          services.SystemClock,
		loc:          time.Local,
	}
}

// WithClock overrides the clock and the timezone that decides "today".
func (s *Service) WithClock(now services.Clock, loc *time.Location) {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
}

// WithCache attaches the aggregate cache invalidated after every record.
func (s *Service) WithCache(c cache.Cache) {
	if c != nil {
		s.cache = c
	}
}

// Presets returns the difficulty catalog.
func (s *Service) Presets() training.Presets {
	return s.presets
}

// RecordInput is a finished session as submitted by the client. Nil fields
// were absent from the request.
type RecordInput struct {
	UserID        *int64
	Difficulty    *string
	SetsCompleted *int
	RepsCompleted *int
	TotalDuration *int
	ContractTime  *int
	RelaxTime     *int
}

func (in RecordInput) complete() bool {
	return in.UserID != nil && in.Difficulty != nil && in.SetsCompleted != nil &&
		in.RepsCompleted != nil && in.TotalDuration != nil && in.ContractTime != nil && in.RelaxTime != nil
}

// Record stores a session dated today, touches the user's last activity and
// re-evaluates their achievements, all in one transaction.
func (s *Service) Record(ctx context.Context, in RecordInput) (training.Record, error) {
	if !in.complete() {
		return training.Record{}, services.Invalid("Missing required fields")
	}
	if _, err := s.store.GetUser(ctx, *in.UserID); err != nil {
		return training.Record{}, err
	}
	difficulty := training.Difficulty(strings.TrimSpace(*in.Difficulty))
	if !s.presets.Has(difficulty) {
		return training.Record{}, services.Invalidf("Invalid difficulty. Use one of: %s", strings.Join(s.presets.Names(), ", "))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"sets_completed", *in.SetsCompleted},
		{"reps_completed", *in.RepsCompleted},
		{"total_duration", *in.TotalDuration},
		{"contract_time", *in.ContractTime},
		{"relax_time", *in.RelaxTime},
	} {
		if f.value < 0 {
			return training.Record{}, services.Invalidf("%s must not be negative", f.name)
		}
	}

	now := s.now()
	rec := training.Record{
		UserID:        *in.UserID,
		Difficulty:    difficulty,
		SetsCompleted: *in.SetsCompleted,
		RepsCompleted: *in.RepsCompleted,
		TotalDuration: *in.TotalDuration,
		ContractTime:  *in.ContractTime,
		RelaxTime:     *in.RelaxTime,
		SessionDate:   services.Today(func() time.Time { return now }, s.loc),
		CreatedAt:     now.UTC(),
	}

	var unlocked int
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		created, err := tx.CreateRecord(ctx, rec)
		if err != nil {
			return err
		}
		rec = created

		u, err := tx.GetUser(ctx, rec.UserID)
		if err != nil {
			return err
		}
		stamp := now.UTC()
		u.LastLogin = &stamp
		u.UpdatedAt = stamp
		if _, err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		newly, err := s.achievements.RecomputeIn(ctx, tx, rec.UserID)
		unlocked = len(newly)
		return err
	})
	if err != nil {
		return training.Record{}, fmt.Errorf("record training for user %d: %w", *in.UserID, err)
	}

	metrics.RecordTraining(string(rec.Difficulty), rec.TotalDuration)
	metrics.RecordUnlocks(unlocked)
	if err := s.cache.Invalidate(ctx, cache.StatsPrefix); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
	s.log.WithField("user_id", rec.UserID).
		WithField("record_id", rec.ID).
		WithField("difficulty", rec.Difficulty).
		WithField("unlocked", unlocked).
		Info("training recorded")
	return rec, nil
}

// HistoryQuery selects a page of a user's records. Dates are YYYY-MM-DD and
// optional.
type HistoryQuery struct {
	UserID     int64
	Page       int
	PerPage    int
	StartDate  string
	EndDate    string
	Difficulty string
}

// HistoryPage is one page of records plus pagination totals.
type HistoryPage struct {
	Records []training.Record
	Total   int
	Page    int
	PerPage int
	Pages   int
}

// History lists a user's records newest first.
func (s *Service) History(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filter := training.Filter{
		UserID:     q.UserID,
		Difficulty: training.Difficulty(strings.TrimSpace(q.Difficulty)),
		Offset:     (page - 1) * perPage,
		Limit:      perPage,
	}
	if q.StartDate != "" {
		d, err := training.ParseDate(q.StartDate)
		if err != nil {
			return HistoryPage{}, services.Invalid("Invalid start_date format. Use YYYY-MM-DD")
		}
		filter.From = d
	}
	if q.EndDate != "" {
		d, err := training.ParseDate(q.EndDate)
		if err != nil {
			return HistoryPage{}, services.Invalid("Invalid end_date format. Use YYYY-MM-DD")
		}
		filter.To = d
	}

	records, total, err := s.store.ListRecords(ctx, filter)
	if err != nil {
		return HistoryPage{}, err
	}
	if records == nil {
		records = []training.Record{}
	}
	return HistoryPage{
		Records: records,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	}, nil
}

// Recent returns the user's latest records, newest first.
func (s *Service) Recent(ctx context.Context, userID int64, limit int) ([]training.Record, error) {
	records, _, err := s.store.ListRecords(ctx, training.Filter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []training.Record{}
	}
	return records, nil
}

// Streak returns the user's current run of consecutive training days.
func (s *Service) Streak(ctx context.Context, userID int64) (int, error) {
	return services.StreakFor(ctx, s.store, userID, s.today())
}

func (s *Service) today() training.Date {
	return services.Today(s.now, s.loc)
}
