package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/db"
)

func TestNewPostgresPool_BadURL(t *testing.T) {
	_, err := db.NewPostgresPool(context.Background(), "://not a url", 0)
	require.ErrorContains(t, err, "pgxpool.ParseConfig")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	client, err := db.NewRedisClient(context.Background(), "http://localhost:6379")
	require.ErrorContains(t, err, "redis.ParseURL")
	require.Nil(t, client)
}
