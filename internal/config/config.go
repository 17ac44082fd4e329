// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Site() SiteConfig
	Timing() TimingConfig
	Models() ModelsConfig
	Training() TrainingConfig
	Outcome() OutcomeConfig
	Artifacts() ArtifactsConfig
	Batch() BatchConfig

	SetBrowserHeadless(bool)
	SetBrowserDriver(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	SiteCfg      SiteConfig      `mapstructure:"site" yaml:"site"`
	TimingCfg    TimingConfig    `mapstructure:"timing" yaml:"timing"`
	ModelsCfg    ModelsConfig    `mapstructure:"models" yaml:"models"`
	TrainingCfg  TrainingConfig  `mapstructure:"training" yaml:"training"`
	OutcomeCfg   OutcomeConfig   `mapstructure:"outcome" yaml:"outcome"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	BatchCfg     BatchConfig     `mapstructure:"batch" yaml:"batch"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Site() SiteConfig           { return c.SiteCfg }
func (c *Config) Timing() TimingConfig       { return c.TimingCfg }
func (c *Config) Models() ModelsConfig       { return c.ModelsCfg }
func (c *Config) Training() TrainingConfig   { return c.TrainingCfg }
func (c *Config) Outcome() OutcomeConfig     { return c.OutcomeCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Batch() BatchConfig         { return c.BatchCfg }

// -- Setters for CLI overrides --

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDriver(d string) { c.BrowserCfg.Driver = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// BrowserConfig holds settings for the browser session that drives a flow.
type BrowserConfig struct {
	Driver            string         `mapstructure:"driver" yaml:"driver"`
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LaunchTimeout     time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// SiteConfig describes the booking page: its address and every locator the
// booking engine relies on. The defaults match the observed structure of the
// target page.
type SiteConfig struct {
	URL              string   `mapstructure:"url" yaml:"url"`
	RoundTripRadio   string   `mapstructure:"round_trip_radio" yaml:"round_trip_radio"`
	OneWayRadio      string   `mapstructure:"one_way_radio" yaml:"one_way_radio"`
	OriginInput      string   `mapstructure:"origin_input" yaml:"origin_input"`
	DestinationInput string   `mapstructure:"destination_input" yaml:"destination_input"`
	DropdownOption   string   `mapstructure:"dropdown_option" yaml:"dropdown_option"`
	DateInput        string   `mapstructure:"date_input" yaml:"date_input"`
	MonthHeader      string   `mapstructure:"month_header" yaml:"month_header"`
	NextMonthButton  string   `mapstructure:"next_month_button" yaml:"next_month_button"`
	DayCell          string   `mapstructure:"day_cell" yaml:"day_cell"`
	SearchButton     string   `mapstructure:"search_button" yaml:"search_button"`
	SearchButtonText string   `mapstructure:"search_button_text" yaml:"search_button_text"`
	ResultIndicators []string `mapstructure:"result_indicators" yaml:"result_indicators"`
	PriceElements    []string `mapstructure:"price_elements" yaml:"price_elements"`
	ConsentKeywords  []string `mapstructure:"consent_keywords" yaml:"consent_keywords"`
	OverlayIDs       []string `mapstructure:"overlay_ids" yaml:"overlay_ids"`
	CloseButtons     string   `mapstructure:"close_buttons" yaml:"close_buttons"`
}

// TimingConfig holds every settle interval and bounded wait of a flow. The
// target page exposes no completion events, so these values are empirical.
type TimingConfig struct {
	PageLoadSettle         time.Duration `mapstructure:"page_load_settle" yaml:"page_load_settle"`
	OverlayPasses          int           `mapstructure:"overlay_passes" yaml:"overlay_passes"`
	OverlaySettle          time.Duration `mapstructure:"overlay_settle" yaml:"overlay_settle"`
	TripTypeSettle         time.Duration `mapstructure:"trip_type_settle" yaml:"trip_type_settle"`
	FieldFocusSettle       time.Duration `mapstructure:"field_focus_settle" yaml:"field_focus_settle"`
	KeyDelay               time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	DropdownSettle         time.Duration `mapstructure:"dropdown_settle" yaml:"dropdown_settle"`
	OptionTimeout          time.Duration `mapstructure:"option_timeout" yaml:"option_timeout"`
	PostSelectSettle       time.Duration `mapstructure:"post_select_settle" yaml:"post_select_settle"`
	CalendarOpenTimeout    time.Duration `mapstructure:"calendar_open_timeout" yaml:"calendar_open_timeout"`
	CalendarOpenSettle     time.Duration `mapstructure:"calendar_open_settle" yaml:"calendar_open_settle"`
	MonthStepSettle        time.Duration `mapstructure:"month_step_settle" yaml:"month_step_settle"`
	MaxMonthPages          int           `mapstructure:"max_month_pages" yaml:"max_month_pages"`
	ProbeTimeout           time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	DaySettle              time.Duration `mapstructure:"day_settle" yaml:"day_settle"`
	InjectionSettle        time.Duration `mapstructure:"injection_settle" yaml:"injection_settle"`
	SearchClickTimeout     time.Duration `mapstructure:"search_click_timeout" yaml:"search_click_timeout"`
	ResultsSettle          time.Duration `mapstructure:"results_settle" yaml:"results_settle"`
	ResultIndicatorTimeout time.Duration `mapstructure:"result_indicator_timeout" yaml:"result_indicator_timeout"`
}

// ModelsConfig points at the trained advisor artifacts.
type ModelsConfig struct {
	DatePath  string `mapstructure:"date_path" yaml:"date_path"`
	PricePath string `mapstructure:"price_path" yaml:"price_path"`
}

// TrainingConfig tunes the offline training of the advisor models.
type TrainingConfig struct {
	Seed          int64 `mapstructure:"seed" yaml:"seed"`
	PriceSamples  int   `mapstructure:"price_samples" yaml:"price_samples"`
	DateTrees     int   `mapstructure:"date_trees" yaml:"date_trees"`
	PriceTrees    int   `mapstructure:"price_trees" yaml:"price_trees"`
	DateMaxDepth  int   `mapstructure:"date_max_depth" yaml:"date_max_depth"`
	PriceMaxDepth int   `mapstructure:"price_max_depth" yaml:"price_max_depth"`
	DateMinLeaf   int   `mapstructure:"date_min_leaf" yaml:"date_min_leaf"`
	PriceMinLeaf  int   `mapstructure:"price_min_leaf" yaml:"price_min_leaf"`
}

// PostgresConfig holds the optional database sink settings.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// OutcomeConfig controls where step records and price observations go.
type OutcomeConfig struct {
	StepsCSV  string         `mapstructure:"steps_csv" yaml:"steps_csv"`
	PricesCSV string         `mapstructure:"prices_csv" yaml:"prices_csv"`
	JUnitPath string         `mapstructure:"junit_path" yaml:"junit_path"`
	Postgres  PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// ArtifactsConfig controls where diagnostic captures are written.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BatchConfig tunes concurrent scenario execution.
type BatchConfig struct {
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	StartInterval time.Duration `mapstructure:"start_interval" yaml:"start_interval"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "fareprobe")
	v.SetDefault("logger.log_file", "fareprobe.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.args", []string{"--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage"})
	v.SetDefault("browser.viewport", map[string]int{"width": 1920, "height": 1080})
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.launch_timeout", "60s")

	// -- Site --
	v.SetDefault("site.url", "https://www.lufthansa.com/us/en/flight-search")
	v.SetDefault("site.round_trip_radio", "input[value='ROUND_TRIP']")
	v.SetDefault("site.one_way_radio", "input[value='ONE_WAY']")
	v.SetDefault("site.origin_input", "input[name*='originCode']")
	v.SetDefault("site.destination_input", "input[name*='destinationCode']")
	v.SetDefault("site.dropdown_option", "div[role='option']")
	v.SetDefault("site.date_input", "input[name*='travelDatetime']")
	v.SetDefault("site.month_header", "div[class*='calendar'] h2, div[class*='month'], span[class*='month']")
	v.SetDefault("site.next_month_button", "button[aria-label*='Next'], button[class*='next']")
	v.SetDefault("site.day_cell", "td[role='gridcell']:not([aria-disabled='true']) button")
	v.SetDefault("site.search_button", "button")
	v.SetDefault("site.search_button_text", "Search flights")
	v.SetDefault("site.result_indicators", []string{
		"div[class*='flight']",
		"div[class*='price']",
		"span[class*='price']",
		"div[class*='offer']",
	})
	v.SetDefault("site.price_elements", []string{
		"span[class*='price']",
		"div[class*='price'] span",
		"span[class*='amount']",
		"div[class*='fare'] span",
		"span[class*='total']",
		"div[class*='total'] span",
	})
	v.SetDefault("site.consent_keywords", []string{"agree", "accept", "consent"})
	v.SetDefault("site.overlay_ids", []string{"consentOverlay", "__tealiumGDPRcpPrefs"})
	v.SetDefault("site.close_buttons", "a[aria-label*='Close']")

	// -- Timing --
	v.SetDefault("timing.page_load_settle", "6s")
	v.SetDefault("timing.overlay_passes", 3)
	v.SetDefault("timing.overlay_settle", "1s")
	v.SetDefault("timing.trip_type_settle", "500ms")
	v.SetDefault("timing.field_focus_settle", "400ms")
	v.SetDefault("timing.key_delay", "100ms")
	v.SetDefault("timing.dropdown_settle", "2500ms")
	v.SetDefault("timing.option_timeout", "3s")
	v.SetDefault("timing.post_select_settle", "1s")
	v.SetDefault("timing.calendar_open_timeout", "5s")
	v.SetDefault("timing.calendar_open_settle", "3s")
	v.SetDefault("timing.month_step_settle", "1s")
	v.SetDefault("timing.max_month_pages", 12)
	v.SetDefault("timing.probe_timeout", "1s")
	v.SetDefault("timing.day_settle", "2s")
	v.SetDefault("timing.injection_settle", "2s")
	v.SetDefault("timing.search_click_timeout", "5s")
	v.SetDefault("timing.results_settle", "20s")
	v.SetDefault("timing.result_indicator_timeout", "5s")

	// -- Models --
	v.SetDefault("models.date_path", "models/date_model.json")
	v.SetDefault("models.price_path", "models/price_model.json")

	// -- Training --
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.price_samples", 1000)
	v.SetDefault("training.date_trees", 50)
	v.SetDefault("training.price_trees", 100)
	v.SetDefault("training.date_max_depth", 5)
	v.SetDefault("training.price_max_depth", 6)
	v.SetDefault("training.date_min_leaf", 1)
	v.SetDefault("training.price_min_leaf", 5)

	// -- Outcome --
	v.SetDefault("outcome.steps_csv", "data/interaction_log.csv")
	v.SetDefault("outcome.prices_csv", "data/price_history.csv")
	v.SetDefault("outcome.junit_path", "")
	v.SetDefault("outcome.postgres.enabled", false)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")

	// -- Batch --
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.start_interval", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials belong in the environment, not the config file.
	_ = v.BindEnv("outcome.postgres.url", "FAREPROBE_POSTGRES_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.OutcomeCfg.Postgres.Enabled && cfg.OutcomeCfg.Postgres.URL == "" {
		cfg.OutcomeCfg.Postgres.URL = os.Getenv("FAREPROBE_POSTGRES_URL")
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading "~" in every file system path of the config.
func (c *Config) ExpandPaths() error {
	paths := []*string{
		&c.LoggerCfg.LogFile,
		&c.ModelsCfg.DatePath,
		&c.ModelsCfg.PricePath,
		&c.OutcomeCfg.StepsCSV,
		&c.OutcomeCfg.PricesCSV,
		&c.OutcomeCfg.JUnitPath,
		&c.ArtifactsCfg.Dir,
		&c.BrowserCfg.ExecPath,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.BrowserCfg.Driver)
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.SiteCfg.URL == "" {
		return fmt.Errorf("site.url is a required configuration field")
	}
	if err := c.TimingCfg.Validate(); err != nil {
		return fmt.Errorf("timing configuration invalid: %w", err)
	}
	if c.BatchCfg.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be a positive integer")
	}
	if c.OutcomeCfg.Postgres.Enabled && c.OutcomeCfg.Postgres.URL == "" {
		return fmt.Errorf("outcome.postgres.url is required when the postgres sink is enabled. Set FAREPROBE_POSTGRES_URL")
	}
	return nil
}

// Validate checks that every bounded wait is actually bounded.
func (t *TimingConfig) Validate() error {
	timeouts := map[string]time.Duration{
		"option_timeout":           t.OptionTimeout,
		"calendar_open_timeout":    t.CalendarOpenTimeout,
		"probe_timeout":            t.ProbeTimeout,
		"search_click_timeout":     t.SearchClickTimeout,
		"result_indicator_timeout": t.ResultIndicatorTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if t.MaxMonthPages < 0 {
		return fmt.Errorf("max_month_pages must not be negative")
	}
	if t.KeyDelay < 0 {
		return fmt.Errorf("key_delay must not be negative")
	}
	return nil
}
