package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goodsign/monday"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"wetterpost/api"
	"wetterpost/bot"
	"wetterpost/config"
	"wetterpost/internal/errorutil"
	"wetterpost/internal/logger"
	"wetterpost/post"
	"wetterpost/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Define command-line flags
	configPath := flag.StringP("config", "c", getDefaultConfigPath(), "Path to TOML configuration file")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	generateConfig := flag.Bool("generate-config", false, "Generate a sample configuration file and exit")
	dryRun := flag.Bool("dry-run", false, "Render images and caption without logging in or uploading")
	only := flag.StringSlice("bot", nil, "Run only the named bot (repeatable)")
	flag.Parse()

	// Handle config generation
	if *generateConfig {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			logger.Fatal("Failed to generate sample config: %v", err)
		}
		logger.Info("Sample configuration file created at: %s", *configPath)
		logger.Info("Edit it to add API keys, account credentials and cities")
		return 0
	}

	startTime := time.Now()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		var notFound *config.ConfigNotFoundError
		if errors.As(err, &notFound) {
			logger.Error("%v", err)
		} else {
			logger.Error("Failed to load configuration: %v", err)
		}
		return 1
	}

	if *logLevel != "" {
		if _, err := logger.ParseLevel(*logLevel); err != nil {
			logger.Warn("Invalid log level %q, keeping %q", *logLevel, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = *logLevel
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed: %v", err)
		return 1
	}

	if err := logger.Initialize(logger.Config(cfg.Logging)); err != nil {
		logger.Error("Failed to initialize logger: %v", err)
		return 1
	}
	l := logger.Get().With("run_id", uuid.NewString())
	defer l.Close()
	log := l.Logger

	mode := "post"
	if *dryRun {
		mode = "dry-run"
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.LogAttrs(ctx, slog.LevelInfo, "Wetterpost starting",
		append(errorutil.ConfigContext(*configPath),
			slog.String("mode", mode),
			slog.Int("bots", len(cfg.Bots)))...)

	if !cfg.Logging.Enabled {
		log.Warn("File logging is disabled, this run leaves no log file")
	}

	var cache *api.CacheManager
	if cfg.Cache.Enabled {
		cache = api.NewCacheManager(cfg.Cache.FilePath)
	}
	water := api.NewWaterScraper(cfg.Network.WaterURLTemplate, cfg.Network.Timeout())
	faces := render.NewFaceCache()

	bots, err := selectBots(cfg, *only)
	if err != nil {
		log.Error("Bot selection failed", slog.String("error", err.Error()))
		return 1
	}

	var results []string
	exitCode := 0
	for _, b := range bots {
		res := runBot(ctx, cfg, b, cache, water, faces, *dryRun, log)
		results = append(results, res.String())
		if res.Err != nil {
			exitCode = 1
		}
		if ctx.Err() != nil {
			log.Warn("Interrupted, remaining bots skipped")
			exitCode = 1
			break
		}
	}

	l.LogExecutionSummary(startTime, *configPath, mode, results, exitCode)
	return exitCode
}

// newForecastChain orders WeatherAPI before OpenWeather One Call and leaves
// out providers without a key. Each bot gets its own chain so breaker state
// never carries over to the next account. The cache may be nil.
func newForecastChain(cfg *config.Config, cache *api.CacheManager, log *slog.Logger) *api.ForecastChain {
	var providers []api.Provider
	if cfg.APIs.WeatherAPI != "" {
		providers = append(providers, api.NewWeatherAPIProvider(cfg.APIs.WeatherAPI, api.ClientOptions{
			BaseURL:  cfg.Network.WeatherAPIURL,
			Timeout:  cfg.Network.Timeout(),
			Language: cfg.Network.Language,
		}))
	}
	if cfg.APIs.OpenWeather != "" {
		providers = append(providers, api.NewOneCallProvider(cfg.APIs.OpenWeather, api.ClientOptions{
			BaseURL:  cfg.Network.OneCallURL,
			Timeout:  cfg.Network.Timeout(),
			Language: cfg.Network.Language,
		}))
	}

	chain := api.NewForecastChain(log, providers...)
	if cache != nil {
		chain.WithCache(cache)
	}
	log.Debug("Forecast providers configured", slog.Any("order", chain.Providers()))
	return chain
}

func selectBots(cfg *config.Config, names []string) ([]config.Bot, error) {
	if len(names) == 0 {
		return cfg.Bots, nil
	}
	selected := make([]config.Bot, 0, len(names))
	for _, name := range names {
		b, ok := cfg.Bot(name)
		if !ok {
			return nil, fmt.Errorf("no bot named %q in configuration", name)
		}
		selected = append(selected, *b)
	}
	return selected, nil
}

func runBot(ctx context.Context, cfg *config.Config, b config.Bot, cache *api.CacheManager,
	water *api.WaterScraper, faces *render.FaceCache, dryRun bool, log *slog.Logger) bot.Result {

	log = log.With(slog.String("bot", b.Name))

	acct, err := account(b)
	if err != nil {
		return bot.Result{Account: b.Name, Err: err}
	}

	surfaces := render.BlankSurfaces(render.DefaultCanvasSize, render.DefaultCanvasSize, faces)
	if tmpl := b.TemplatePath(cfg.Render); tmpl != "" {
		surfaces, err = render.TemplateSurfaces(tmpl, faces)
		if err != nil {
			return bot.Result{Account: b.Name, Err: errorutil.LogAndWrap(log, "load template", err, errorutil.FileContext(tmpl)...)}
		}
	}

	layout := render.DefaultLayout(render.FontFiles{
		Display:  cfg.Render.Fonts.Display,
		SemiBold: cfg.Render.Fonts.SemiBold,
		Regular:  cfg.Render.Fonts.Regular,
	})
	layout.DateLocale = monday.Locale(b.Locale)

	runner := &bot.Runner{
		Forecasts: newForecastChain(cfg, cache, log),
		Water:     water,
		Session:   api.NewSocialClient(cfg.Gateway.URL, cfg.Network.Timeout(), log),
		Renderer:  render.NewCompositor(layout, surfaces, log),
		DryRun:    dryRun,
		Quality:   cfg.Render.JPEGQuality,
		Logger:    log,
	}
	return runner.Run(ctx, acct)
}

func account(b config.Bot) (bot.Account, error) {
	cities := make([]post.CityEntry, 0, len(b.Cities))
	for _, c := range b.Cities {
		entry, err := c.Entry()
		if err != nil {
			return bot.Account{}, fmt.Errorf("city %s: %w", c.Name, err)
		}
		cities = append(cities, entry)
	}

	return bot.Account{
		Name: b.Name,
		Credentials: api.Credentials{
			Username:    b.Username,
			Password:    b.Password,
			TOTPSecret:  b.TOTPSecret,
			Country:     b.Country,
			CountryCode: b.CountryCode,
			Locale:      b.Locale,
			UTCOffset:   b.Offset(),
			SessionFile: b.SessionPath(),
		},
		Days:        b.Days,
		Locale:      b.Locale,
		Title:       b.Title,
		Watermark:   b.Watermark,
		WaterID:     b.WaterID,
		CaptionPath: b.CaptionPath(),
		OutputDir:   b.OutputDir(),
		Location:    b.Location,
		Cities:      cities,
	}, nil
}

// getDefaultConfigPath returns a cross-platform default config path
func getDefaultConfigPath() string {
	// Try to use config.toml in the current directory
	return filepath.Clean("config.toml")
}
