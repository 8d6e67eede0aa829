package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Config controls the MongoDB connection, populated from the environment by
// pkg/config.
type Config struct {
	ConnectionURL   string        `env:"MONGODB_URL,required"`
	Database        string        `env:"MONGODB_DATABASE" envDefault:"billing"`
	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryAttempts   int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

var (
	ErrFailedToConnect   = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed = errors.New("mongo healthcheck failed")
)

// Connect opens a mongo client and verifies it with a ping, retrying on
// startup races with the database container.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	for range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize).
				SetMaxConnIdleTime(cfg.MaxConnIdleTime),
		)
		if err == nil {
			if err := client.Ping(ctx, nil); err == nil {
				return client, nil
			}
		}
		time.Sleep(cfg.RetryInterval)
	}

	return nil, ErrFailedToConnect
}

// ConnectDatabase connects and returns the configured database handle, the
// form the audit store consumes.
func ConnectDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.Database), nil
}

// Healthcheck adapts the client to the func(ctx) error shape health
// endpoints expect.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
