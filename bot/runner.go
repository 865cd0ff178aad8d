package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wetterpost/api"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// WaterSource reads the current water temperature for a station.
type WaterSource interface {
	Fetch(ctx context.Context, id string) (*post.WaterReading, error)
}

// Session is an upload client that must log in first.
type Session interface {
	Uploader
	Login(ctx context.Context, creds api.Credentials) error
}

// Account is everything the runner needs to know about one bot.
type Account struct {
	Name        string
	Credentials api.Credentials
	Days        int
	Locale      string
	Title       string
	Watermark   string
	WaterID     string
	CaptionPath string
	OutputDir   string
	Location    post.Location
	Cities      []post.CityEntry
}

// Runner executes the pipeline for one account.
type Runner struct {
	Forecasts ForecastSource
	Water     WaterSource
	Session   Session
	Renderer  Renderer
	DryRun    bool
	Quality   int
	Logger    *slog.Logger
	Now       func() time.Time
}

// Result summarises one account run.
type Result struct {
	Account string
	Cities  int
	Skipped int
	Water   bool
	Err     error
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: FAILED (%v)", r.Account, r.Err)
	}
	return fmt.Sprintf("%s: ok, %d cities, %d skipped, water=%t", r.Account, r.Cities, r.Skipped, r.Water)
}

// Run authenticates, collects data, renders and publishes. An AuthError ends
// the run for this account before any data is fetched.
func (r *Runner) Run(ctx context.Context, acct Account) Result {
	log := r.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(attrsToAny(errorutil.BotContext(acct.Name, acct.Credentials.Username))...)
	now := r.Now
	if now == nil {
		now = time.Now
	}

	res := Result{Account: acct.Name}
	start := now()

	if !r.DryRun {
		if r.Session == nil {
			res.Err = ErrNotAuthenticated
			return res
		}
		err := errorutil.ExecuteWithLogging(log, "login", func() error {
			return r.Session.Login(ctx, acct.Credentials)
		})
		if err != nil {
			res.Err = err
			return res
		}
	}

	registry := NewRegistry(r.Forecasts, post.NewTemperatureFormatter(acct.Locale), acct.Days, log)
	res.Skipped = registry.AddAll(ctx, acct.Cities)
	res.Cities = registry.Len()
	if res.Cities == 0 && len(acct.Cities) > 0 {
		log.Warn("No city could be registered, posting without callouts")
	}

	var water *post.WaterReading
	if r.Water != nil && acct.WaterID != "" {
		reading, err := r.Water.Fetch(ctx, acct.WaterID)
		if err != nil {
			if !errors.Is(err, api.ErrWaterUnavailable) {
				err = fmt.Errorf("%w: %v", api.ErrWaterUnavailable, err)
			}
			errorutil.LogWarning(log, "water temperature", err, slog.String("station", acct.WaterID))
		} else {
			water = reading
			log.Info("Water temperature read",
				slog.String("time", reading.Timestamp),
				slog.String("temperature", reading.Temperature))
		}
	}
	res.Water = water != nil

	captionTemplate, err := LoadCaptionTemplate(acct.CaptionPath)
	if err != nil {
		errorutil.LogWarning(log, "caption template", err, errorutil.FileContext(acct.CaptionPath)...)
	}

	pc := &post.PostContext{
		Cities:    registry.Cities(),
		Water:     water,
		DayCount:  acct.Days,
		Title:     acct.Title,
		Watermark: acct.Watermark,
		Location:  acct.Location,
		Date:      start,
	}

	publisher := NewPublisher(r.Renderer, r.Session, PublisherOptions{
		OutputDir:       acct.OutputDir,
		CaptionTemplate: captionTemplate,
		JPEGQuality:     r.Quality,
		DryRun:          r.DryRun,
	}, log)

	if err := publisher.Publish(ctx, pc); err != nil {
		res.Err = err
		return res
	}

	log.Info("Bot run completed", slog.Duration("duration", now().Sub(start)))
	return res
}
