package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	// Endpoint overrides the account-derived R2 endpoint (local S3 emulators, tests).
	Endpoint string
}

// Platforms holds the API base URLs of every network. They default to the
// production hosts and only change when pointing the adapters at a stub.
type Platforms struct {
	InstagramGraphURL string
	ThreadsGraphURL   string
	LinkedInAPIURL    string
	LinkedInVersion   string
	TwitterAPIURL     string
	TwitterUploadURL  string
	YoutubeUploadURL  string
	TiktokAPIURL      string
	GoogleTokenURL    string
	TwitterTokenURL   string
}

type Polling struct {
	InstagramInterval     time.Duration
	InstagramAttempts     int
	ThreadsInterval       time.Duration
	ThreadsAttempts       int
	ThreadsVideoAttempts  int
	TwitterStatusAttempts int
	// TwitterStatusInterval applies when X omits check_after_secs.
	TwitterStatusInterval time.Duration
	TwitterChunkSize      int
}

// Youtube is the short-form publishing policy applied to every upload.
type Youtube struct {
	TitleMax     int
	DefaultTitle string
	ShortsTag    string
	ForceShorts  bool
	CategoryID   string
	Privacy      string
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	TiktokClientKey       string
	TiktokClientSecret    string
	GoogleClientID        string
	GoogleClientSecret    string
	TwitterClientID       string
	TwitterClientSecret   string
	PostgresURI           string
	MigrationsPath        string
	RedisURI              string
	FrontendURL           string
	ListenAddr            string
	R2                    R2
	Platforms             Platforms
	Polling               Polling
	Youtube               Youtube
	SecretKey             string
	CookieName            string
	// TokenKey seals OAuth tokens at rest. It must be 16, 24 or 32 bytes.
	TokenKey              string
	SchedulerBatchSize    int
	WorkerConcurrency     int
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		TwitterClientID:       getEnv("TWITTER_CLIENT_ID", ""),
		TwitterClientSecret:   getEnv("TWITTER_CLIENT_SECRET", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		MigrationsPath:        getEnv("MIGRATIONS_PATH", "file://db/migrations"),
		RedisURI:              getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		ListenAddr:            getEnv("LISTEN_ADDR", ":3000"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
		},
		Platforms: Platforms{
			InstagramGraphURL: getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com/v21.0"),
			ThreadsGraphURL:   getEnv("THREADS_GRAPH_URL", "https://graph.threads.net/v1.0"),
			LinkedInAPIURL:    getEnv("LINKEDIN_API_URL", "https://api.linkedin.com"),
			LinkedInVersion:   getEnv("LINKEDIN_VERSION", "202405"),
			TwitterAPIURL:     getEnv("TWITTER_API_URL", "https://api.twitter.com"),
			TwitterUploadURL:  getEnv("TWITTER_UPLOAD_URL", "https://api.x.com/2/media/upload"),
			YoutubeUploadURL:  getEnv("YOUTUBE_UPLOAD_URL", "https://www.googleapis.com/upload/youtube/v3/videos"),
			TiktokAPIURL:      getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com"),
			GoogleTokenURL:    getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			TwitterTokenURL:   getEnv("TWITTER_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
		},
		Polling: Polling{
			InstagramInterval:     getEnvDuration("INSTAGRAM_POLL_INTERVAL", time.Second),
			InstagramAttempts:     getEnvInt("INSTAGRAM_POLL_ATTEMPTS", 30),
			ThreadsInterval:       getEnvDuration("THREADS_POLL_INTERVAL", time.Second),
			ThreadsAttempts:       getEnvInt("THREADS_POLL_ATTEMPTS", 30),
			ThreadsVideoAttempts:  getEnvInt("THREADS_VIDEO_POLL_ATTEMPTS", 60),
			TwitterStatusAttempts: getEnvInt("TWITTER_STATUS_ATTEMPTS", 30),
			TwitterStatusInterval: getEnvDuration("TWITTER_STATUS_INTERVAL", 5*time.Second),
			TwitterChunkSize:      getEnvInt("TWITTER_CHUNK_SIZE", 4*1024*1024),
		},
		Youtube: Youtube{
			TitleMax:     getEnvInt("YOUTUBE_TITLE_MAX", 100),
			DefaultTitle: getEnv("YOUTUBE_DEFAULT_TITLE", "New video"),
			ShortsTag:    getEnv("YOUTUBE_SHORTS_TAG", "#Shorts"),
			ForceShorts:  getEnvBool("YOUTUBE_FORCE_SHORTS", true),
			CategoryID:   getEnv("YOUTUBE_CATEGORY_ID", "22"),
			Privacy:      getEnv("YOUTUBE_PRIVACY", "public"),
		},
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "postflow_session"),
		TokenKey:           getEnv("TOKEN_ENCRYPTION_KEY", ""),
		SchedulerBatchSize: getEnvInt("SCHEDULER_BATCH_SIZE", 10),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
