package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// APIs contains API key configurations
type APIs struct {
	WeatherAPI  string `toml:"weatherapi"`
	OpenWeather string `toml:"openweather"`
}

// Network contains HTTP client settings shared by every remote call
type Network struct {
	TimeoutSeconds   int    `toml:"timeout_seconds" validate:"gte=0,lte=300"`
	Language         string `toml:"language"`
	WeatherAPIURL    string `toml:"weatherapi_url" validate:"omitempty,url"`
	OneCallURL       string `toml:"onecall_url" validate:"omitempty,url"`
	WaterURLTemplate string `toml:"water_url_template"`
}

// Timeout returns the configured timeout as a duration.
func (n Network) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Gateway is the social platform REST gateway
type Gateway struct {
	URL string `toml:"url" validate:"omitempty,url"`
}

// Fonts are the font files used on the image
type Fonts struct {
	Display  string `toml:"display"`
	SemiBold string `toml:"semibold"`
	Regular  string `toml:"regular"`
}

// Render contains image output settings
type Render struct {
	Template    string `toml:"template"` // relative to the bot path unless absolute
	Fonts       Fonts  `toml:"fonts"`
	JPEGQuality int    `toml:"jpeg_quality" validate:"gte=1,lte=100"`
}

// Logging contains logging configuration with rotation and cross-platform support
type Logging struct {
	Enabled         bool   `toml:"enabled"`          // Enable file logging
	Directory       string `toml:"directory"`        // Log directory (relative or absolute)
	FilenamePattern string `toml:"filename_pattern"` // Log filename with date patterns
	Level           string `toml:"level"`            // Log level: debug, info, warn, error
	MaxFiles        int    `toml:"max_files"`        // Number of log files to keep
	MaxSizeMB       int    `toml:"max_size_mb"`      // Rotate when file exceeds this size
	ConsoleOutput   bool   `toml:"console_output"`   // Also output to console
}

// Cache contains forecast caching configuration
type Cache struct {
	Enabled  bool   `toml:"enabled"`
	FilePath string `toml:"file_path"` // Path to forecast cache file (TOML format)
}

// City is one forecast point and where its callout goes on the template
type City struct {
	Name     string    `toml:"name" validate:"required"`
	Coords   []float64 `toml:"coords" validate:"len=2"`   // [lat, lon]
	Position []float64 `toml:"position" validate:"len=2"` // marker pixel [x, y]
	Folding  string    `toml:"folding"`                  // l, r, left or right, any case
	Offset   []float64 `toml:"offset" validate:"len=2"` // callout offset [dx, dy]
}

// Entry converts the city into a forecast-less CityEntry.
func (c City) Entry() (post.CityEntry, error) {
	folding, err := post.ParseFolding(c.Folding)
	if err != nil {
		return post.CityEntry{}, err
	}
	if len(c.Coords) != 2 || len(c.Position) != 2 || len(c.Offset) != 2 {
		return post.CityEntry{}, fmt.Errorf("city %q: coords, position and offset need two values each", c.Name)
	}
	return post.CityEntry{
		Name:        c.Name,
		Coordinates: post.Coordinates{Lat: c.Coords[0], Lon: c.Coords[1]},
		Position:    post.Point{X: c.Position[0], Y: c.Position[1]},
		Folding:     folding,
		Offset:      post.Point{X: c.Offset[0], Y: c.Offset[1]},
	}, nil
}

// Bot is one social media account and the post it publishes
type Bot struct {
	Name        string        `toml:"name" validate:"required"`
	Path        string        `toml:"path" validate:"required"` // per-account working directory
	Username    string        `toml:"username" validate:"required"`
	Password    string        `toml:"password" validate:"required"`
	TOTPSecret  string        `toml:"totp_secret"`
	Country     string        `toml:"country" validate:"len=2"`
	CountryCode int           `toml:"country_code" validate:"gte=1"`
	Locale      string        `toml:"locale" validate:"required"`
	UTCOffset   *int          `toml:"utc_offset" validate:"omitempty,gte=-12,lte=14"` // hours, nil until defaulted
	Days        int           `toml:"days" validate:"gte=1,lte=14"`
	Title       string        `toml:"title"`
	Watermark   string        `toml:"watermark"`
	WaterID     string        `toml:"water_id"`
	CaptionFile string        `toml:"caption_file"`
	SessionFile string        `toml:"session_file"`
	Location    post.Location `toml:"location"`
	Cities      []City        `toml:"cities" validate:"required,min=1,dive"`
}

func (b Bot) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(b.Path, name)
}

// Offset returns the configured UTC offset in hours.
func (b Bot) Offset() int {
	if b.UTCOffset == nil {
		return defaultUTCOffset
	}
	return *b.UTCOffset
}

// SessionPath is where the login session blob is kept between runs.
func (b Bot) SessionPath() string { return b.resolve(b.SessionFile) }

// CaptionPath is the caption template file.
func (b Bot) CaptionPath() string { return b.resolve(b.CaptionFile) }

// OutputDir receives the generated images.
func (b Bot) OutputDir() string { return filepath.Join(b.Path, "latest_post") }

// TemplatePath resolves the render template for this bot.
func (b Bot) TemplatePath(r Render) string {
	if r.Template == "" {
		return ""
	}
	return b.resolve(r.Template)
}

// Config represents the complete application configuration
type Config struct {
	APIs    APIs    `toml:"apis"`
	Network Network `toml:"network"`
	Gateway Gateway `toml:"gateway"`
	Render  Render  `toml:"render"`
	Logging Logging `toml:"logging"`
	Cache   Cache   `toml:"cache"`
	Bots    []Bot   `toml:"bots" validate:"dive"`
}

// Bot returns the bot with the given name.
func (c *Config) Bot(name string) (*Bot, bool) {
	for i := range c.Bots {
		if c.Bots[i].Name == name {
			return &c.Bots[i], true
		}
	}
	return nil, false
}

// defaultUTCOffset is CET, used when an account sets no utc_offset.
const defaultUTCOffset = 1

// Environment variables that override values from the file.
const (
	EnvWeatherAPIKey  = "WEATHERAPI_API_KEY"
	EnvOpenWeatherKey = "OPENWEATHER_API_KEY"
	EnvGatewayURL     = "SOCIAL_GATEWAY_URL"
)

// LoadConfig reads and parses a TOML configuration file. A .env file next to
// the configuration, if present, is loaded into the environment first.
func LoadConfig(configPath string) (*Config, error) {
	// Clean the path to handle both Windows and Unix paths
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigNotFoundError{Path: cleanPath}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse TOML configuration: %w", err)
	}

	// The log file is the run's audit trail, so it stays on unless the file
	// turns it off explicitly.
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err == nil {
		if !hasKey(raw, "logging", "enabled") {
			config.Logging.Enabled = true
		}
		if !hasKey(raw, "logging", "console_output") {
			config.Logging.ConsoleOutput = true
		}
	}

	envFile := filepath.Join(filepath.Dir(cleanPath), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	config.ApplyEnv()

	config.ApplyDefaults()

	return &config, nil
}

// hasKey reports whether the nested key path is present in a decoded TOML
// document.
func hasKey(doc map[string]any, path ...string) bool {
	cur := doc
	for i, key := range path {
		v, ok := cur[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		if cur, ok = v.(map[string]any); !ok {
			return false
		}
	}
	return false
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvWeatherAPIKey); v != "" {
		c.APIs.WeatherAPI = v
	}
	if v := os.Getenv(EnvOpenWeatherKey); v != "" {
		c.APIs.OpenWeather = v
	}
	if v := os.Getenv(EnvGatewayURL); v != "" {
		c.Gateway.URL = v
	}
}

// ApplyDefaults sets default values for optional configuration fields
func (c *Config) ApplyDefaults() {
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = 10
	}
	if strings.TrimSpace(c.Network.Language) == "" {
		c.Network.Language = "de"
	}
	if strings.TrimSpace(c.Gateway.URL) == "" {
		c.Gateway.URL = "http://localhost:8000"
	}
	if c.Render.JPEGQuality <= 0 {
		c.Render.JPEGQuality = 95
	}

	if strings.TrimSpace(c.Logging.Directory) == "" {
		c.Logging.Directory = "logs"
	}
	if strings.TrimSpace(c.Logging.FilenamePattern) == "" {
		c.Logging.FilenamePattern = "wetterpost-YYYYMMDD.log"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxFiles <= 0 {
		c.Logging.MaxFiles = 7
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}

	if strings.TrimSpace(c.Cache.FilePath) == "" {
		c.Cache.FilePath = filepath.Join(os.TempDir(), "wetterpost-forecast-cache.toml")
	}

	for i := range c.Bots {
		b := &c.Bots[i]
		if strings.TrimSpace(b.Name) == "" {
			b.Name = b.Username
		}
		if b.Country == "" {
			b.Country = "DE"
		}
		if b.CountryCode == 0 {
			b.CountryCode = 49
		}
		if b.Locale == "" {
			b.Locale = "de_DE"
		}
		if b.UTCOffset == nil {
			offset := defaultUTCOffset
			b.UTCOffset = &offset
		}
		if b.Days == 0 {
			b.Days = 2
		}
		if b.CaptionFile == "" {
			b.CaptionFile = "caption.txt"
		}
		if b.SessionFile == "" {
			b.SessionFile = "settings.dump"
		}
		for j := range b.Cities {
			if b.Cities[j].Folding == "" {
				b.Cities[j].Folding = "r"
			}
			if b.Cities[j].Offset == nil {
				b.Cities[j].Offset = []float64{0, 0}
			}
		}
	}
}

// ConfigNotFoundError represents a missing configuration file
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s\n\nTo create a sample configuration file, run:\n  %s --generate-config", e.Path, filepath.Base(os.Args[0]))
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(messages, "\n  "))
}

var validate = newValidator()

// newValidator reports fields by their TOML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for correctness and completeness
func (c *Config) Validate() error {
	var errs []ValidationError

	errs = append(errs, c.validateStruct()...)
	errs = append(errs, c.validateAPIKeys()...)
	errs = append(errs, c.validateBots()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// validateStruct runs the struct tag rules.
func (c *Config) validateStruct() []ValidationError {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Field: "config", Message: err.Error()}}
	}

	var errs []ValidationError
	for _, fe := range fieldErrs {
		// Drop the root type name from "Config.bots[0].name".
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		errs = append(errs, ValidationError{Field: field, Message: describeRule(fe)})
	}
	return errs
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got '%v'", fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("value %v violates %s=%s", fe.Value(), fe.Tag(), fe.Param())
	case "url":
		return fmt.Sprintf("'%v' is not a valid URL", fe.Value())
	}
	return fmt.Sprintf("failed rule '%s'", fe.Tag())
}

// validateAPIKeys requires at least one forecast provider key.
func (c *Config) validateAPIKeys() []ValidationError {
	var errs []ValidationError

	primary := errorutil.ValidateAPIKey("apis.weatherapi", c.APIs.WeatherAPI, 16)
	secondary := errorutil.ValidateAPIKey("apis.openweather", c.APIs.OpenWeather, 16)

	if primary != nil && secondary != nil && primary.Rule == "required" && secondary.Rule == "required" {
		return []ValidationError{{
			Field:   "apis",
			Message: "at least one forecast API key is required (weatherapi or openweather, or set " + EnvWeatherAPIKey + " / " + EnvOpenWeatherKey + ")",
		}}
	}
	for _, verr := range []*errorutil.ValidationError{primary, secondary} {
		if verr != nil && verr.Rule != "required" {
			errs = append(errs, ValidationError{Field: verr.Field, Message: verr.Message})
		}
	}
	return errs
}

// validateBots checks the values struct tags cannot express.
func (c *Config) validateBots() []ValidationError {
	var errs []ValidationError

	if len(c.Bots) == 0 {
		return []ValidationError{{Field: "bots", Message: "at least one [[bots]] entry is required"}}
	}

	seen := make(map[string]bool)
	for i, b := range c.Bots {
		prefix := fmt.Sprintf("bots[%d]", i)
		if seen[b.Name] {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate bot name '%s'", b.Name)})
		}
		seen[b.Name] = true

		if b.Location.Name != "" {
			if verr := errorutil.ValidateCoordinate(prefix+".location.lat", b.Location.Lat, true); verr != nil {
				errs = append(errs, ValidationError{Field: verr.Field, Message: verr.Message})
			}
			if verr := errorutil.ValidateCoordinate(prefix+".location.lon", b.Location.Lng, false); verr != nil {
				errs = append(errs, ValidationError{Field: verr.Field, Message: verr.Message})
			}
		}

		cityNames := make(map[string]bool)
		for j, city := range b.Cities {
			cityPrefix := fmt.Sprintf("%s.cities[%d]", prefix, j)
			if _, err := post.ParseFolding(city.Folding); err != nil {
				errs = append(errs, ValidationError{Field: cityPrefix + ".folding", Message: err.Error()})
			}
			if cityNames[city.Name] {
				errs = append(errs, ValidationError{Field: cityPrefix + ".name", Message: fmt.Sprintf("duplicate city name '%s'", city.Name)})
			}
			cityNames[city.Name] = true

			if len(city.Coords) == 2 {
				if verr := errorutil.ValidateCoordinate(cityPrefix+".coords[0]", city.Coords[0], true); verr != nil {
					errs = append(errs, ValidationError{Field: verr.Field, Message: verr.Message})
				}
				if verr := errorutil.ValidateCoordinate(cityPrefix+".coords[1]", city.Coords[1], false); verr != nil {
					errs = append(errs, ValidationError{Field: verr.Field, Message: verr.Message})
				}
			}
		}
	}
	return errs
}

// validateLogging checks logging configuration
func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	validLevels := []string{"debug", "info", "warn", "error"}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level != "" {
		valid := false
		for _, validLevel := range validLevels {
			if level == validLevel {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, ValidationError{
				Field:   "logging.level",
				Message: fmt.Sprintf("level must be one of: %s, got '%s'", strings.Join(validLevels, ", "), c.Logging.Level),
			})
		}
	}

	if c.Logging.MaxFiles < 0 || c.Logging.MaxFiles > 365 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_files",
			Message: fmt.Sprintf("max_files must be between 0 and 365, got %d", c.Logging.MaxFiles),
		})
	}

	if c.Logging.Enabled && strings.TrimSpace(c.Logging.FilenamePattern) == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.filename_pattern",
			Message: "filename_pattern is required when logging is enabled",
		})
	}

	return errs
}

// GenerateSampleConfig creates a sample configuration file at the specified path
func GenerateSampleConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	return nil
}

const sampleConfig = `# wetterpost configuration file
# Daily forecast image posts for social media accounts

[apis]
# Primary forecast provider: https://www.weatherapi.com/
weatherapi = "your-weatherapi-api-key-here"
# Fallback provider (One Call 3.0): https://openweathermap.org/api
openweather = "your-openweather-api-key-here"
# Both keys can also be set via WEATHERAPI_API_KEY / OPENWEATHER_API_KEY
# or a .env file next to this file.

[network]
timeout_seconds = 10                       # Per request, applies to every remote call
language = "de"                            # Language of the condition texts
water_url_template = ""                    # Empty uses the Bavarian lake gauge table, %s = station

[gateway]
# REST gateway in front of the social platform (SOCIAL_GATEWAY_URL overrides)
url = "http://localhost:8000"

[render]
template = "post_template.png"             # Relative to each bot path
jpeg_quality = 95

[render.fonts]
display = "../fonts/Gidole-Regular.ttf"
semibold = "../fonts/PlexusSans-SemiBold.otf"
regular = "../fonts/PlexusSans-Regular.otf"

[logging]
enabled = true                             # Enable file logging
directory = "logs"                         # Log directory (relative to working dir or absolute path)
filename_pattern = "wetterpost-YYYYMMDD.log"  # YYYY=year, MM=month, DD=day, HH=hour
level = "info"                             # Log level: debug, info, warn, error
max_files = 7                              # Keep 7 days of logs
max_size_mb = 10                           # Rotate when file exceeds 10MB
console_output = true                      # Also output to console

[cache]
# Same-day forecast cache, reused by repeated runs on the same date
enabled = false
file_path = ""                             # Empty uses the system temp directory

[[bots]]
name = "muenchen"
path = "bots/muenchen"                     # Holds caption.txt, settings.dump and latest_post/
username = "your-account"
password = "your-password"
totp_secret = ""                           # Base32 secret of the authenticator app
country = "DE"
country_code = 49
locale = "de_DE"
utc_offset = 1
days = 2
title = "Wetter Oberbayern"
watermark = "@your-account"
water_id = "muenchen-16005701"             # Empty disables the water temperature panel

[bots.location]
name = "München"
lat = 48.1374
lon = 11.5755

[[bots.cities]]
name = "München"
coords = [48.1374, 11.5755]
position = [1080, 1150]
folding = "r"
offset = [60, -100]

[[bots.cities]]
name = "Garmisch"
coords = [47.4921, 11.0958]
position = [860, 1780]
folding = "l"
offset = [-60, -100]
`
