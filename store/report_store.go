// Package store composes the report engine: ranked pagination, journey
// reconstruction, navigation graphs and derived metrics, all run over a
// request-scoped store session.
package store

import (
	"context"
	"time"

	"caratdash/api/database"
	"caratdash/api/logger"
	"caratdash/api/models"
)

// Default page lengths per report.
const (
	DefaultLength        = 5
	DefaultJourneyLength = 10
	BrowserTopK          = 10
	SankeyTopK           = 45
)

// journeyConcurrency bounds per-user reconstruction fan-out.
const journeyConcurrency = 8

type ReportOptions struct {
	// RequestTimeout bounds every report call, including session setup.
	RequestTimeout time.Duration
	// BookingConversionDomains count conversions from conversion_status
	// instead of spec views.
	BookingConversionDomains []string
}

type ReportStore struct {
	sessions          *database.Manager
	timeout           time.Duration
	bookingConversion map[string]bool
	log               *logger.Logger
}

func NewReportStore(sessions *database.Manager, opts ReportOptions, log *logger.Logger) *ReportStore {
	booking := make(map[string]bool, len(opts.BookingConversionDomains))
	for _, d := range opts.BookingConversionDomains {
		booking[d] = true
	}
	return &ReportStore{
		sessions:          sessions,
		timeout:           opts.RequestTimeout,
		bookingConversion: booking,
		log:               log,
	}
}

// withSession runs fn with a fresh session for the filter's tenant under the
// request deadline. The session is released on every path.
func (s *ReportStore) withSession(ctx context.Context, report string, f models.Filter, fn func(context.Context, *database.Session) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sess, err := s.sessions.Acquire(ctx, f.Domain)
	if err != nil {
		s.log.Error("failed to acquire store session", "report", report, "tenant", f.Domain, "error", err)
		return err
	}
	defer sess.Release()

	started := time.Now()
	if err := fn(ctx, sess); err != nil {
		s.log.Error("report failed", "report", report, "tenant", f.Domain, "error", err)
		return err
	}
	s.log.Debug("report served", "report", report, "tenant", f.Domain, "elapsed", time.Since(started))
	return nil
}

// countsBookings reports whether the tenant's conversions are bookings.
func (s *ReportStore) countsBookings(domain string) bool {
	return s.bookingConversion[domain]
}

// userClauses are the device and cohort fragments against a uid column.
func userClauses(uidColumn string, f models.Filter) []Clause {
	return []Clause{
		CohortExists(uidColumn, f),
		DeviceExists(uidColumn, f),
	}
}
