package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	App struct {
		Port          string `mapstructure:"port"`
		Env           string `mapstructure:"env"`
		PublicBaseURL string `mapstructure:"public_base_url"`
	} `mapstructure:"app"`
	Storage struct {
		Driver       string `mapstructure:"driver"`
		Key          string `mapstructure:"key"`
		FailOpen     bool   `mapstructure:"fail_open"`
		SeedDefaults bool   `mapstructure:"seed_defaults"`
	} `mapstructure:"storage"`
	File struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"file"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		URL      string `mapstructure:"url"`
	} `mapstructure:"redis"`
	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
	} `mapstructure:"kafka"`
	Auth struct {
		StateSecret   string        `mapstructure:"state_secret"`
		StateLifespan time.Duration `mapstructure:"state_lifespan"`
	} `mapstructure:"auth"`
	Cloudinary struct {
		CloudName string `mapstructure:"cloud_name"`
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	} `mapstructure:"cloudinary"`
	Upload struct {
		MaxSizeMB int64  `mapstructure:"max_size_mb"`
		Folder    string `mapstructure:"folder"`
	} `mapstructure:"upload"`
	Stripe struct {
		SecretKey       string `mapstructure:"secret_key"`
		ConnectClientID string `mapstructure:"connect_client_id"`
		OAuthEnabled    bool   `mapstructure:"oauth_enabled"`
	} `mapstructure:"stripe"`
	Jaeger struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"jaeger"`
	Backup struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"backup"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()

	err = godotenv.Load(path + "/.env")
	if err != nil {
		log.Println("warning: .env file not found, use default.")
	}

	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err = v.ReadInConfig(); err != nil {
		log.Printf("note: config.yaml not found, read .env only. Error: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("app.port", "APP_PORT", "PORT")
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.public_base_url", "PUBLIC_BASE_URL")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.key", "STORAGE_KEY")
	v.BindEnv("storage.fail_open", "STORAGE_FAIL_OPEN")
	v.BindEnv("storage.seed_defaults", "STORAGE_SEED_DEFAULTS")
	v.BindEnv("file.dir", "DATA_DIR")
	v.BindEnv("db.dsn", "DB_DSN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.database", "MONGO_DATABASE")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("auth.state_secret", "STATE_SECRET")
	v.BindEnv("auth.state_lifespan", "STATE_LIFESPAN")

	v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	v.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	v.BindEnv("upload.folder", "UPLOAD_FOLDER")

	v.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	v.BindEnv("stripe.connect_client_id", "STRIPE_CONNECT_CLIENT_ID")
	v.BindEnv("stripe.oauth_enabled", "STRIPE_OAUTH_ENABLED")

	v.BindEnv("jaeger.otlp_endpoint", "OTLP_ENDPOINT")
	v.BindEnv("backup.interval", "BACKUP_INTERVAL")
	v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	err = v.Unmarshal(&cfg)
	if err != nil {
		return
	}

	// Comma separated env values arrive as a single element.
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.public_base_url", "https://tapcards.us")
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.key", "profiles")
	v.SetDefault("storage.fail_open", true)
	v.SetDefault("storage.seed_defaults", true)
	v.SetDefault("file.dir", "data")
	v.SetDefault("mongo.database", "tap")
	v.SetDefault("kafka.group_id", "avatar-processor-group")
	v.SetDefault("auth.state_lifespan", 10*time.Minute)
	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("upload.folder", "avatars")
	// The authorize route is unauthenticated: with this on, anyone who knows a
	// username can start linking a payout account to that profile.
	v.SetDefault("stripe.oauth_enabled", false)
	v.SetDefault("backup.interval", time.Duration(0))
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
