package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	RedisAddr string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	DirectoryDSN string // legacy HR postgres

	VendorBaseURL        string
	VendorCredentialName string // secret name holding the vendor connection string
	SyncSchedule         string // cron expression for the reconciliation sweep
	BroadcastCategories  []string
	Chat                 ChatDefaults
}

// ChatDefaults carries the immutable chat-group defaults injected into the
// reconciler and service at construction. Values apply when a group does
// not override them.
type ChatDefaults struct {
	MaxUsersAllowed     int
	MemberBatchSize     int
	OpenHour            int
	CloseHour           int
	AvailableOnWeekends bool
	AttachmentsAllowed  bool
	RichTextAllowed     bool
	BidirectionalReply  bool
	CaptureActivity     bool
	BranchAdminJobLevel int // job levels at or above this map to admin access
	GroupCacheTTLSecs   int
	LastReadTTLDays     int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "ob-engagement"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "ob-backend"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		MinioBucket:    getEnv("MINIO_BUCKET", "ob-chat-attachments"),

		DirectoryDSN: getEnv("DIRECTORY_DSN", "postgres://localhost:5432/hr?sslmode=disable"),

		VendorBaseURL:        getEnv("CHAT_VENDOR_BASE_URL", "https://chat.vendor.local"),
		VendorCredentialName: getEnv("CHAT_VENDOR_CREDENTIAL_NAME", "chat_vendor_connection"),
		SyncSchedule:         getEnv("CHAT_SYNC_SCHEDULE", "0 3 * * *"),
		BroadcastCategories:  splitCSV(getEnv("CHAT_BROADCAST_CATEGORIES", "Announcements,Safety")),

		Chat: ChatDefaults{
			MaxUsersAllowed:     getEnvInt("CHAT_MAX_USERS", 250),
			MemberBatchSize:     getEnvInt("CHAT_MEMBER_BATCH_SIZE", 20),
			OpenHour:            getEnvInt("CHAT_OPEN_HOUR", 8),
			CloseHour:           getEnvInt("CHAT_CLOSE_HOUR", 20),
			AvailableOnWeekends: getEnv("CHAT_WEEKENDS", "false") == "true",
			AttachmentsAllowed:  getEnv("CHAT_ATTACHMENTS", "true") == "true",
			RichTextAllowed:     getEnv("CHAT_RICH_TEXT", "true") == "true",
			BidirectionalReply:  getEnv("CHAT_BIDIRECTIONAL", "true") == "true",
			CaptureActivity:     getEnv("CHAT_CAPTURE_ACTIVITY", "true") == "true",
			BranchAdminJobLevel: getEnvInt("CHAT_ADMIN_JOB_LEVEL", 5),
			GroupCacheTTLSecs:   getEnvInt("CHAT_GROUP_CACHE_TTL", 300),
			LastReadTTLDays:     getEnvInt("CHAT_LAST_READ_TTL_DAYS", 60),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
