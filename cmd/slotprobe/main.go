// slotprobe is an operator CLI for poking the availability layer against a
// live backend (or fakeclinicd). It wires the full read/mutate path: cache
// store, API client, availability queries, calendar aggregation and the
// booking coordinator with cross-session invalidation.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/harborview-health/clinic-scheduling/internal/availability"
	"github.com/harborview-health/clinic-scheduling/internal/booking"
	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/calendarview"
	"github.com/harborview-health/clinic-scheduling/internal/config"
	"github.com/harborview-health/clinic-scheduling/internal/invalidation"
	"github.com/harborview-health/clinic-scheduling/internal/observability/metrics"
	"github.com/harborview-health/clinic-scheduling/internal/schedapi"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	practitionerID := flag.Int64("practitioner", 5, "practitioner id")
	appointmentTypeID := flag.Int64("type", 2, "appointment type id")
	date := flag.String("date", "", "date YYYY-MM-DD (default: today in the clinic time zone)")
	batch := flag.String("batch", "", "comma-separated extra dates for a batch slot query")
	calendarView := flag.String("calendar", "", "also fetch a calendar view: day, week or month")
	bookStart := flag.String("book", "", "book the slot starting at HH:MM")
	patientID := flag.Int64("patient", 0, "patient id for -book")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic time zone", "tz", cfg.ClinicTimezone, "error", err)
		os.Exit(1)
	}
	if *date == "" {
		*date = time.Now().In(loc).Format("2006-01-02")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m := metrics.NewSchedulingMetrics(prometheus.NewRegistry())

	api, err := schedapi.New(schedapi.Config{
		BaseURL:          cfg.APIBaseURL,
		APIKey:           cfg.APIKey,
		ClinicID:         cfg.ClinicID,
		Timeout:          cfg.HTTPTimeout,
		RetryMaxAttempts: cfg.ReadRetryMaxAttempts,
		RetryBaseDelay:   cfg.ReadRetryBaseDelay,
		Logger:           logger,
		Metrics:          m,
	})
	if err != nil {
		logger.Error("failed to build API client", "error", err)
		os.Exit(1)
	}

	store := cache.NewStore(cache.StoreConfig{KeepFor: cfg.CacheKeepFor, Logger: logger, Metrics: m})
	engine := invalidation.NewEngine(store, buildBus(ctx, cfg, logger), logger)
	queries := availability.New(store, api, availability.Config{ClinicID: cfg.ClinicID, FreshFor: cfg.SlotFreshFor}, logger, m)
	coordinator := booking.New(store, api, engine, cfg.ClinicID, logger, m)

	slots, ok, err := queries.Slots(ctx, availability.SlotsParams{
		PractitionerID:    *practitionerID,
		AppointmentTypeID: *appointmentTypeID,
		Date:              *date,
	})
	if err != nil {
		logger.Error("slot query failed", "error", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("selection incomplete; nothing to query")
		os.Exit(1)
	}
	fmt.Printf("%d slots for practitioner %d, type %d on %s:\n", len(slots), *practitionerID, *appointmentTypeID, *date)
	for _, s := range slots {
		fmt.Printf("  %s - %s\n", s.StartTime, s.EndTime)
	}

	if *batch != "" {
		dates := append([]string{*date}, strings.Split(*batch, ",")...)
		byDate, err := queries.BatchSlots(ctx, availability.BatchParams{
			PractitionerID:    *practitionerID,
			AppointmentTypeID: *appointmentTypeID,
			Dates:             dates,
		})
		if err != nil {
			logger.Error("batch slot query failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("\nbatch:")
		for _, d := range dates {
			fmt.Printf("  %s: %d slots\n", d, len(byDate[d]))
		}
	}

	if *calendarView != "" {
		day, err := time.ParseInLocation("2006-01-02", *date, loc)
		if err != nil {
			logger.Error("invalid date", "date", *date, "error", err)
			os.Exit(1)
		}
		agg := calendarview.New(store, api, calendarview.Config{ClinicID: cfg.ClinicID, FreshFor: cfg.SlotFreshFor, Location: loc}, logger)
		view, err := agg.CalendarView(ctx, calendarview.Params{
			PractitionerIDs: []int64{*practitionerID},
			Current:         day,
			View:            calendarview.View(*calendarView),
		})
		if err != nil {
			logger.Error("calendar query failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\ncalendar %s to %s: %d events\n", view.Window.Start, view.Window.End, len(view.Events))
		for _, ev := range view.Events {
			fmt.Printf("  %s %s-%s %s #%d\n", ev.Date, ev.StartTime, ev.EndTime, ev.SubjectKind, ev.SubjectID)
		}
	}

	if *bookStart != "" {
		if *patientID == 0 {
			fmt.Println("-book requires -patient")
			os.Exit(1)
		}
		appt, err := coordinator.Book(ctx, booking.Draft{
			PractitionerID:    *practitionerID,
			AppointmentTypeID: *appointmentTypeID,
			Date:              *date,
			StartTime:         *bookStart,
			PatientID:         *patientID,
		})
		if err != nil {
			if schedapi.IsConflict(err) {
				fmt.Printf("slot %s is already taken\n", *bookStart)
				os.Exit(2)
			}
			logger.Error("booking failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nbooked appointment %d: %s %s-%s\n", appt.ID, appt.Date, appt.StartTime, appt.EndTime)
	}
}

// buildBus connects the optional Redis invalidation bus. A missing or
// unreachable Redis degrades to local-only invalidation.
func buildBus(ctx context.Context, cfg *config.Config, logger *logging.Logger) *invalidation.Bus {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, invalidation stays local", "error", err)
		return nil
	}
	return invalidation.NewBus(client, logger)
}
