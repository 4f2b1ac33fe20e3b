package config

const EnvPrefix = "GDKP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	VisionProviderOpenAI    = "openai"
	VisionProviderGemini    = "gemini"
	VisionProviderAnthropic = "anthropic"
)

const (
	EnvAppEnv          = "GDKP_APP_ENV"
	EnvPort            = "GDKP_APP_PORT"
	EnvDBDSN           = "GDKP_DB_DSN"
	EnvDBHost          = "GDKP_DB_HOST"
	EnvDBPort          = "GDKP_DB_PORT"
	EnvDBUser          = "GDKP_DB_USER"
	EnvDBPassword      = "GDKP_DB_PASSWORD"
	EnvDBName          = "GDKP_DB_NAME"
	EnvUseSQLite       = "GDKP_USE_SQLITE"
	EnvRedisURL        = "GDKP_REDIS_URL"
	EnvVisionProvider  = "GDKP_VISION_PROVIDER"
	EnvVisionAPIKey    = "GDKP_VISION_API_KEY"
	EnvVisionMaxTokens = "GDKP_VISION_MAX_TOKENS"
	EnvGCSBucket       = "GDKP_GCS_BUCKET_NAME"
	EnvMaxUploadMB     = "GDKP_MAX_UPLOAD_MB"
	EnvDefaultCurrency = "GDKP_DEFAULT_CURRENCY"
	EnvDraftsTTL       = "GDKP_DRAFTS_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
