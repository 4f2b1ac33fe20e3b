package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Vision       VisionConfig
	OCR          OCRConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Media        MediaConfig
	Drafts       DraftsConfig
	Catalog      CatalogConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Vision.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GDKP_APP_ENV" required:"true"`
	Port         string `envconfig:"GDKP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GDKP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GDKP_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"GDKP_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type DBConfig struct {
	DSN        string `envconfig:"GDKP_DB_DSN"`
	SQLitePath string `envconfig:"GDKP_SQLITE_PATH" default:"gdkp.db"`

	LegacyHost     string `envconfig:"GDKP_DB_HOST"`
	LegacyPort     int    `envconfig:"GDKP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GDKP_DB_USER"`
	LegacyPassword string `envconfig:"GDKP_DB_PASSWORD"`
	LegacyName     string `envconfig:"GDKP_DB_NAME"`
	LegacySSLMode  string `envconfig:"GDKP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GDKP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GDKP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GDKP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GDKP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GDKP_REDIS_URL"`
	Address      string        `envconfig:"GDKP_REDIS_ADDR"`
	Password     string        `envconfig:"GDKP_REDIS_PASSWORD"`
	DB           int           `envconfig:"GDKP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GDKP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GDKP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GDKP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GDKP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GDKP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GDKP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GDKP_AUTO_MIGRATE" default:"false"`
}

type VisionConfig struct {
	Provider  string `envconfig:"GDKP_VISION_PROVIDER" default:"openai"`
	APIKey    string `envconfig:"GDKP_VISION_API_KEY"`
	Model     string `envconfig:"GDKP_VISION_MODEL"`
	BaseURL   string `envconfig:"GDKP_VISION_BASE_URL"`
	MaxTokens int    `envconfig:"GDKP_VISION_MAX_TOKENS" default:"512"`
}

func (v VisionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(v.Provider)) {
	case VisionProviderOpenAI, VisionProviderGemini, VisionProviderAnthropic:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvVisionProvider,
			VisionProviderOpenAI, VisionProviderGemini, VisionProviderAnthropic)
	}
	if v.MaxTokens <= 0 {
		return fmt.Errorf("%s must be positive", EnvVisionMaxTokens)
	}
	return nil
}

type OCRConfig struct {
	APIKey   string `envconfig:"GDKP_OCR_API_KEY" default:"helloworld"`
	Endpoint string `envconfig:"GDKP_OCR_ENDPOINT" default:"https://api.ocr.space/parse/image"`
	Language string `envconfig:"GDKP_OCR_LANGUAGE" default:"eng"`
}

type GoogleMapsConfig struct {
	APIKey       string  `envconfig:"GDKP_GOOGLE_MAPS_API_KEY"`
	NearbyRadius float64 `envconfig:"GDKP_GOOGLE_MAPS_NEARBY_RADIUS_M" default:"150"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GDKP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GDKP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GDKP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"GDKP_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"GDKP_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	// APIBaseURL overrides the JSON API host (emulators, tests).
	APIBaseURL string `envconfig:"GDKP_GCS_API_BASE_URL" default:"https://storage.googleapis.com"`
	Anonymous  bool   `envconfig:"GDKP_GCS_ANONYMOUS" default:"false"`
}

type MediaConfig struct {
	MaxUploadMB     int    `envconfig:"GDKP_MAX_UPLOAD_MB" default:"10"`
	ImageMaxSide    int    `envconfig:"GDKP_MEDIA_IMAGE_MAX_SIDE" default:"1920"`
	ImageMaxBytes   int    `envconfig:"GDKP_MEDIA_IMAGE_MAX_BYTES" default:"2097152"`
	ImageQuality    int    `envconfig:"GDKP_MEDIA_IMAGE_QUALITY" default:"82"`
	DefaultCurrency string `envconfig:"GDKP_DEFAULT_CURRENCY" default:"USD"`
}

// MaxUploadBytes converts the whole-megabyte limit into bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 0
	}
	return int64(m.MaxUploadMB) << 20
}

type DraftsConfig struct {
	TTL time.Duration `envconfig:"GDKP_DRAFTS_TTL" default:"24h"`
}

type CatalogConfig struct {
	ResultLimit int `envconfig:"GDKP_CATALOG_RESULT_LIMIT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
