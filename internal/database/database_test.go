package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tanya-ai-go/internal/config"
)

func TestPostgresDB_NilPool(t *testing.T) {
	db := &PostgresDB{Pool: nil}

	assert.NotPanics(t, func() {
		db.Close()
	})
	assert.Error(t, db.HealthCheck(context.Background()))
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "explicit url wins",
			cfg:  config.DatabaseConfig{DatabaseURL: "postgres://u:p@db:5432/tanya", Host: "ignored"},
			want: "postgres://u:p@db:5432/tanya",
		},
		{
			name: "components",
			cfg: config.DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "tanya",
				Password: "secret",
				DBName:   "tanya",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 user=tanya password=secret dbname=tanya sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDSN(tt.cfg))
		})
	}
}

func TestNewPostgresConnection_InvalidConfig(t *testing.T) {
	db, err := NewPostgresConnection(context.Background(), config.DatabaseConfig{DatabaseURL: "postgres://%zz"})
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "invalid database configuration")
}

func TestNewPostgresConnection_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := NewPostgresConnection(ctx, config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "tanya",
		Password: "tanya",
		DBName:   "tanya",
		SSLMode:  "disable",
		MaxConns: 2,
	})
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestRedisClient_NilClient(t *testing.T) {
	client := &RedisClient{Client: nil}
	ctx := context.Background()

	assert.NotPanics(t, func() { client.Close() })

	err := client.HealthCheck(ctx)
	assert.ErrorContains(t, err, "redis client is nil")
}

func TestRedisClient_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisConnection(config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.HealthCheck(ctx))

	mr.Close()
	assert.Error(t, client.HealthCheck(ctx))
}

func TestNewRedisConnection_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mustPort(t, mr)
	mr.Close()

	client, err := NewRedisConnection(config.RedisConfig{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
