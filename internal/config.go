package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	LogLevel     string `env:"LOG_LEVEL,required=true" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Host         string `env:"HOST,default=localhost"`
	Port         int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	HealthPort   int    `env:"HEALTH_PORT,default=8081" validate:"min=1,max=65535"`
	KeyPrefix    string `env:"KEY_PREFIX"`
	CookieSecure bool   `env:"COOKIE_SECURE,default=false"`

	StoreBackend   string `env:"STORE_BACKEND,default=badger" validate:"oneof=badger redis"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=StoreBackend badger"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379" validate:"required_if=StoreBackend redis"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0" validate:"min=0"`

	FanoutBackend string `env:"FANOUT_BACKEND,default=memory" validate:"oneof=memory redis"`
	FanoutMaxLen  int64  `env:"FANOUT_MAX_LEN,default=1000" validate:"min=0"`

	RoomLifetime     time.Duration `env:"ROOM_LIFETIME,default=30m" validate:"gt=0"`
	MaxParticipants  int           `env:"MAX_PARTICIPANTS,default=2" validate:"min=0"`
	CredentialSecret string        `env:"CREDENTIAL_SECRET,required=true" validate:"min=16"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=0"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=1s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=5s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

// Load reads an optional .env file, then the environment, then validates the result.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("dotenv error: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if config.FanoutBackend == BackendRedis && config.RedisAddr == "" {
		return Config{}, errors.New("invalid config: FANOUT_BACKEND=redis needs REDIS_ADDR")
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) HealthAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HealthPort)
}
