package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"nobroker_watchdog/models"
)

// Config is the full, immutable configuration snapshot. Values merge
// from two sources: an optional YAML file (CONFIG_FILE, default
// config.yaml) loaded first, then environment variables (including a
// .env file) overriding any field they name. Env wins over YAML.
type Config struct {
	// Core scanning
	City                 string   `yaml:"city"`
	Areas                []string `yaml:"areas"`
	BudgetMin            int      `yaml:"budget_min"`
	BudgetMax            int      `yaml:"budget_max"`
	BHKIn                []int    `yaml:"bhk_in"`
	FurnishingIn         []string `yaml:"furnishing_in"`
	PropertyTypesIn      []string `yaml:"property_types_in"`
	MoveInBy             string   `yaml:"move_in_by"` // YYYY-MM-DD
	ExcludeKeywords      []string `yaml:"exclude_keywords"`
	RequiredAmenitiesAny []string `yaml:"required_amenities_any"`
	CarpetMinSqft        int      `yaml:"carpet_min_sqft"`
	FloorsAllowedIn      []string `yaml:"floors_allowed_in"`
	PetsAllowed          *bool    `yaml:"pets_allowed"`
	ListingAgeMaxHours   int      `yaml:"listing_age_max_hours"`

	// Proximity mode
	AreaCoords  map[string]models.Coord `yaml:"area_coords"`
	ProximityKm float64                 `yaml:"proximity_km"`

	// Matching
	SoftMatchThreshold int                 `yaml:"soft_match_threshold"`
	ScoreWeights       models.ScoreWeights `yaml:"score_weights"`

	// Scheduling
	ScanIntervalMinutes int    `yaml:"scan_interval_minutes"`
	ScanCron            string `yaml:"scan_cron"`
	CycleTimeoutMinutes int    `yaml:"cycle_timeout_minutes"`

	// Politeness & networking
	HTTPMinDelaySeconds float64 `yaml:"http_min_delay_seconds"`
	HTTPMaxDelaySeconds float64 `yaml:"http_max_delay_seconds"`
	HTTPTimeoutSeconds  int     `yaml:"http_timeout_seconds"`
	MaxRetries          int     `yaml:"max_retries"`
	ProxyURL            string  `yaml:"proxy_url"`

	// Notification channels
	NotifyChannels  []string       `yaml:"notify_channels"` // order = fallback order
	NotifyPhoneE164 string         `yaml:"notify_phone_e164"`
	WhatsApp        WhatsAppConfig `yaml:"whatsapp"`
	Twilio          TwilioConfig   `yaml:"twilio"`
	AMQP            AMQPConfig     `yaml:"amqp"`

	// Storage
	StateDBPath string `yaml:"state_db_path"`
	DatabaseURL string `yaml:"database_url"` // optional Postgres archive

	// Observability
	LogLevel   string `yaml:"log_level"`
	HealthPort int    `yaml:"health_port"` // 0 disables
}

type WhatsAppConfig struct {
	PhoneNumberID string `yaml:"phone_number_id"`
	AccessToken   string `yaml:"access_token"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Load builds the configuration snapshot: defaults, then the YAML file,
// then env/.env overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListingAgeMaxHours:  48,
		SoftMatchThreshold:  70,
		ScanIntervalMinutes: 10,
		CycleTimeoutMinutes: 10,
		HTTPMinDelaySeconds: 1.2,
		HTTPMaxDelaySeconds: 2.4,
		HTTPTimeoutSeconds:  20,
		MaxRetries:          3,
		StateDBPath:         "state.db",
		LogLevel:            "info",
		AreaCoords:          make(map[string]models.Coord),
	}
	cfg.AMQP.Queue = "watchdog.alerts"

	if err := cfg.loadYAML(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if cfg.City == "" {
		return nil, fmt.Errorf("config: CITY is required")
	}
	if cfg.HTTPMaxDelaySeconds < cfg.HTTPMinDelaySeconds {
		cfg.HTTPMaxDelaySeconds = 2 * cfg.HTTPMinDelaySeconds
	}

	return cfg, nil
}

func (c *Config) loadYAML() error {
	path := getEnv("CONFIG_FILE", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.City = getEnv("CITY", c.City)
	if v := os.Getenv("AREAS"); v != "" {
		c.Areas = splitSemicolonList(v)
	}
	c.BudgetMin = getEnvInt("BUDGET_MIN", c.BudgetMin)
	c.BudgetMax = getEnvInt("BUDGET_MAX", c.BudgetMax)
	if v := os.Getenv("BHK_IN"); v != "" {
		c.BHKIn = splitIntList(v)
	}
	if v := os.Getenv("FURNISHING_IN"); v != "" {
		c.FurnishingIn = splitCSVList(v)
	}
	if v := os.Getenv("PROPERTY_TYPES_IN"); v != "" {
		c.PropertyTypesIn = splitCSVList(v)
	}
	c.MoveInBy = getEnv("MOVE_IN_BY", c.MoveInBy)
	if v := os.Getenv("EXCLUDE_KEYWORDS"); v != "" {
		c.ExcludeKeywords = splitCSVList(v)
	}
	if v := os.Getenv("REQUIRED_AMENITIES_ANY"); v != "" {
		c.RequiredAmenitiesAny = splitCSVList(v)
	}
	c.CarpetMinSqft = getEnvInt("CARPET_MIN_SQFT", c.CarpetMinSqft)
	if v := os.Getenv("FLOORS_ALLOWED_IN"); v != "" {
		c.FloorsAllowedIn = splitCSVList(v)
	}
	if v := os.Getenv("PETS_ALLOWED"); v != "" {
		b := strings.EqualFold(v, "true")
		c.PetsAllowed = &b
	}
	c.ListingAgeMaxHours = getEnvInt("LISTING_AGE_MAX_HOURS", c.ListingAgeMaxHours)

	if v := os.Getenv("AREA_COORDS"); v != "" {
		c.AreaCoords = parseAreaCoords(v)
	}
	c.ProximityKm = getEnvFloat("PROXIMITY_KM", c.ProximityKm)

	c.SoftMatchThreshold = getEnvInt("SOFT_MATCH_THRESHOLD", c.SoftMatchThreshold)
	c.ScoreWeights.Amenities = getEnvInt("WEIGHT_AMENITIES", c.ScoreWeights.Amenities)
	c.ScoreWeights.Carpet = getEnvInt("WEIGHT_CARPET", c.ScoreWeights.Carpet)
	c.ScoreWeights.Floor = getEnvInt("WEIGHT_FLOOR", c.ScoreWeights.Floor)
	c.ScoreWeights.Pets = getEnvInt("WEIGHT_PETS", c.ScoreWeights.Pets)
	c.ScoreWeights.MoveIn = getEnvInt("WEIGHT_MOVE_IN", c.ScoreWeights.MoveIn)

	c.ScanIntervalMinutes = getEnvInt("SCAN_INTERVAL_MINUTES", c.ScanIntervalMinutes)
	c.ScanCron = getEnv("SCAN_CRON", c.ScanCron)
	c.CycleTimeoutMinutes = getEnvInt("CYCLE_TIMEOUT_MINUTES", c.CycleTimeoutMinutes)

	c.HTTPMinDelaySeconds = getEnvFloat("HTTP_MIN_DELAY_SECONDS", c.HTTPMinDelaySeconds)
	c.HTTPMaxDelaySeconds = getEnvFloat("HTTP_MAX_DELAY_SECONDS", c.HTTPMaxDelaySeconds)
	c.HTTPTimeoutSeconds = getEnvInt("HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)
	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)
	c.ProxyURL = getEnv("PROXY_URL", c.ProxyURL)

	if v := os.Getenv("NOTIFY_CHANNELS"); v != "" {
		c.NotifyChannels = splitCSVList(v)
	}
	c.NotifyPhoneE164 = getEnv("NOTIFY_PHONE_E164", c.NotifyPhoneE164)
	c.WhatsApp.PhoneNumberID = getEnv("WA_PHONE_NUMBER_ID", c.WhatsApp.PhoneNumberID)
	c.WhatsApp.AccessToken = getEnv("WA_ACCESS_TOKEN", c.WhatsApp.AccessToken)
	c.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Twilio.AccountSID)
	c.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.Twilio.AuthToken)
	c.Twilio.FromNumber = getEnv("TWILIO_FROM_NUMBER", c.Twilio.FromNumber)
	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Queue = getEnv("AMQP_QUEUE", c.AMQP.Queue)

	c.StateDBPath = getEnv("STATE_DB_PATH", c.StateDBPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HealthPort = getEnvInt("HEALTH_PORT", c.HealthPort)
}

// Criteria materializes the hard constraints. Radius mode engages when a
// proximity distance and at least one area center are configured;
// otherwise the area check is exact-name matching.
func (c *Config) Criteria() *models.Criteria {
	mode := models.AreaMatchExact
	if c.ProximityKm > 0 && len(c.AreaCoords) > 0 {
		mode = models.AreaMatchRadius
	}
	return &models.Criteria{
		City:            c.City,
		Areas:           c.Areas,
		AreaMode:        mode,
		AreaCoords:      c.AreaCoords,
		ProximityKm:     c.ProximityKm,
		BudgetMin:       c.BudgetMin,
		BudgetMax:       c.BudgetMax,
		BHKIn:           c.BHKIn,
		FurnishingIn:    c.FurnishingIn,
		PropertyTypesIn: c.PropertyTypesIn,
		MaxAge:          time.Duration(c.ListingAgeMaxHours) * time.Hour,
		ExcludeKeywords: c.ExcludeKeywords,
	}
}

// Preferences materializes the soft-score inputs.
func (c *Config) Preferences() *models.Preferences {
	p := &models.Preferences{
		RequiredAmenitiesAny: c.RequiredAmenitiesAny,
		CarpetMinSqft:        c.CarpetMinSqft,
		FloorsAllowedIn:      c.FloorsAllowedIn,
		PetsAllowed:          c.PetsAllowed,
		Weights:              c.ScoreWeights,
	}
	if c.MoveInBy != "" {
		if t, err := time.Parse("2006-01-02", c.MoveInBy); err == nil {
			p.MoveInBy = &t
		}
	}
	return p
}

func (c *Config) ScanInterval() time.Duration {
	minutes := c.ScanIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutMinutes) * time.Minute
}

// ---------- env + list helpers ----------

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitCSVList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitSemicolonList splits area lists on ';' (and '|' as an alias), so
// area names containing commas stay intact.
func splitSemicolonList(val string) []string {
	val = strings.ReplaceAll(val, "|", ";")
	var out []string
	for _, part := range strings.Split(val, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitIntList(val string) []int {
	var out []int
	for _, part := range splitCSVList(val) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// parseAreaCoords reads the env form "Area, City|12.34|56.78;Another|1|2".
func parseAreaCoords(val string) map[string]models.Coord {
	out := make(map[string]models.Coord)
	for _, part := range strings.Split(val, ";") {
		bits := strings.Split(part, "|")
		if len(bits) != 3 {
			continue
		}
		name := strings.TrimSpace(bits[0])
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(bits[1]), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(bits[2]), 64)
		if name == "" || err1 != nil || err2 != nil {
			continue
		}
		out[name] = models.Coord{Lat: lat, Lng: lng}
	}
	return out
}
