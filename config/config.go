package config

import (
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App         App           `yaml:"app"`
	Server      Server        `yaml:"server"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Store       *redis.Client `yaml:"redis"`
	Storage     *minio.Client `yaml:"storage"`
	MinIOBucket string        `yaml:"minio_bucket"`
	WorkDir     string        `yaml:"workdir"`
	Script      ScriptAPI     `yaml:"script"`
	Image       ImageAPI      `yaml:"image"`
	Voice       VoiceAPI      `yaml:"voice"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

type ScriptAPI struct {
	ApiUrl string
	ApiKey string
	Model  string
}

type ImageAPI struct {
	ApiUrl   string
	ApiToken string
	Version  string
}

type VoiceAPI struct {
	ApiUrl  string
	ApiKey  string
	VoiceId string
	ModelId string
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	// The yaml file is optional: everything can come from the environment.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	store, err := NewRedisClient(viper.GetString("redis.url"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq.host"),
		Port: viper.GetInt("rabbitmq.port"),
		User: viper.GetString("rabbitmq.user"),
		Pass: viper.GetString("rabbitmq.pass"),
		Kind: viper.GetString("rabbitmq.kind"),
	}

	// Object storage is optional; its presence enables the upload stage.
	var storage *minio.Client
	if viper.GetString("minio.url") != "" {
		storage, err = minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: false,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Queue:       rabbitmq,
		Store:       store,
		Storage:     storage,
		MinIOBucket: viper.GetString("minio.bucket"),
		WorkDir:     viper.GetString("workdir"),
		Script: ScriptAPI{
			ApiUrl: viper.GetString("openai.api_url"),
			ApiKey: viper.GetString("openai.api_key"),
			Model:  viper.GetString("openai.model"),
		},
		Image: ImageAPI{
			ApiUrl:   viper.GetString("replicate.api_url"),
			ApiToken: viper.GetString("replicate.api_token"),
			Version:  viper.GetString("replicate.version"),
		},
		Voice: VoiceAPI{
			ApiUrl:  viper.GetString("elevenlabs.api_url"),
			ApiKey:  viper.GetString("elevenlabs.api_key"),
			VoiceId: viper.GetString("elevenlabs.voice_id"),
			ModelId: viper.GetString("elevenlabs.model_id"),
		},
	}, nil
}

func setDefaults() {
	viper.SetDefault("app.environment", "develop")
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.pass", "guest")
	viper.SetDefault("rabbitmq.kind", "direct")
	viper.SetDefault("workdir", "/tmp/story-video")
	viper.SetDefault("openai.api_url", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("openai.model", "gpt-4")
	viper.SetDefault("replicate.api_url", "https://api.replicate.com/v1/predictions")
	viper.SetDefault("replicate.version", "27b93a2413e7f36cd83da926f3656280b2931564ff050bf9575f1fdf9bcd7478")
	viper.SetDefault("elevenlabs.api_url", "https://api.elevenlabs.io/v1/text-to-speech")
	viper.SetDefault("elevenlabs.voice_id", "pNInz6obpgDQGcFmaJgB")
	viper.SetDefault("elevenlabs.model_id", "eleven_multilingual_v2")
}
