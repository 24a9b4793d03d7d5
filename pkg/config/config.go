package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	MediaBackendLocal = "local"
	MediaBackendMinio = "minio"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Groups       GroupConfig
	Schedule     ScheduleConfig
	Notes        NotesConfig
	Media        MediaConfig
	Export       ExportConfig
	Admin        AdminConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// VerificationConfig tunes one-time login codes.
type VerificationConfig struct {
	CodeTTL       time.Duration
	CodeLength    int
	MaxAttempts   int
	SweepSchedule string
}

// RateLimitConfig throttles code requests per client. Applies only with Redis.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// GroupConfig holds membership limits and invite link settings.
type GroupConfig struct {
	MaxMembers    int
	InviteSecret  string
	InviteBaseURL string
}

// ScheduleConfig holds schedule capacity rules.
type ScheduleConfig struct {
	MaxPerDay  int
	MaxPerWeek int
	CacheTTL   time.Duration
}

// NotesConfig holds lecture note limits.
type NotesConfig struct {
	MaxPerEvent int
}

// MediaConfig selects where note audio and images are stored.
type MediaConfig struct {
	Backend       string
	LocalDir      string
	PublicBaseURL string
	MaxFileSize   int64
	URLExpiry     time.Duration
	Minio         MinioConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ExportConfig configures document rendering.
type ExportConfig struct {
	PDFFontPath string
}

// AdminConfig lists phones allowed to use operational endpoints.
type AdminConfig struct {
	Phones []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 30*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Verification = VerificationConfig{
		CodeTTL:       parseDuration(v.GetString("VERIFICATION_CODE_TTL"), 10*time.Minute),
		CodeLength:    positiveOr(v.GetInt("VERIFICATION_CODE_LENGTH"), 6),
		MaxAttempts:   positiveOr(v.GetInt("VERIFICATION_MAX_ATTEMPTS"), 5),
		SweepSchedule: v.GetString("VERIFICATION_SWEEP_SCHEDULE"),
	}

	cfg.RateLimit = RateLimitConfig{
		Limit:  v.GetInt("AUTH_RATE_LIMIT"),
		Window: parseDuration(v.GetString("AUTH_RATE_WINDOW"), time.Minute),
	}

	cfg.Groups = GroupConfig{
		MaxMembers:    positiveOr(v.GetInt("GROUP_MAX_MEMBERS"), 25),
		InviteSecret:  v.GetString("GROUP_INVITE_SECRET"),
		InviteBaseURL: strings.TrimRight(v.GetString("GROUP_INVITE_BASE_URL"), "/"),
	}

	cfg.Schedule = ScheduleConfig{
		MaxPerDay:  positiveOr(v.GetInt("SCHEDULE_MAX_PER_DAY"), 5),
		MaxPerWeek: positiveOr(v.GetInt("SCHEDULE_MAX_PER_WEEK"), 20),
		CacheTTL:   parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Notes = NotesConfig{
		MaxPerEvent: positiveOr(v.GetInt("NOTES_MAX_PER_EVENT"), 2),
	}

	maxMediaSize := v.GetInt64("MEDIA_MAX_FILE_SIZE")
	if maxMediaSize <= 0 {
		maxMediaSize = 25 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		Backend:       strings.ToLower(v.GetString("MEDIA_BACKEND")),
		LocalDir:      v.GetString("MEDIA_LOCAL_DIR"),
		PublicBaseURL: strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		MaxFileSize:   maxMediaSize,
		URLExpiry:     parseDuration(v.GetString("MEDIA_URL_EXPIRY"), 7*24*time.Hour),
		Minio: MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
	}

	cfg.Export = ExportConfig{
		PDFFontPath: v.GetString("EXPORT_PDF_FONT"),
	}

	cfg.Admin = AdminConfig{
		Phones: splitAndTrim(v.GetString("ADMIN_PHONES")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "studygroup")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "720h")
	v.SetDefault("JWT_ISSUER", "studygroup-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("VERIFICATION_CODE_TTL", "10m")
	v.SetDefault("VERIFICATION_CODE_LENGTH", 6)
	v.SetDefault("VERIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("VERIFICATION_SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("AUTH_RATE_LIMIT", 5)
	v.SetDefault("AUTH_RATE_WINDOW", "1m")

	v.SetDefault("GROUP_MAX_MEMBERS", 25)
	v.SetDefault("GROUP_INVITE_SECRET", "dev_invite_secret")
	v.SetDefault("GROUP_INVITE_BASE_URL", "http://localhost:3000")

	v.SetDefault("SCHEDULE_MAX_PER_DAY", 5)
	v.SetDefault("SCHEDULE_MAX_PER_WEEK", 20)
	v.SetDefault("SCHEDULE_CACHE_TTL", "5m")
	v.SetDefault("NOTES_MAX_PER_EVENT", 2)

	v.SetDefault("MEDIA_BACKEND", MediaBackendLocal)
	v.SetDefault("MEDIA_LOCAL_DIR", "./media")
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "http://localhost:8080/media")
	v.SetDefault("MEDIA_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("MEDIA_URL_EXPIRY", "168h")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "lecture-media")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("EXPORT_PDF_FONT", "")
	v.SetDefault("ADMIN_PHONES", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
