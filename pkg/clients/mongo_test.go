package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
)

func TestClientOptions(t *testing.T) {
	opts, err := ClientOptions(config.ConnectionConfig{
		URI:                    "mongodb://db1:27017,db2:27017/?replicaSet=rs0",
		AppName:                "strata-test",
		Username:               "reader",
		Password:               "secret",
		AuthSource:             "admin",
		ConnectTimeout:         2 * time.Second,
		ServerSelectionTimeout: 3 * time.Second,
		MaxPoolSize:            8,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"db1:27017", "db2:27017"}, opts.Hosts)
	assert.Equal(t, "strata-test", *opts.AppName)
	assert.Equal(t, 2*time.Second, *opts.ConnectTimeout)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	assert.Equal(t, uint64(8), *opts.MaxPoolSize)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "reader", opts.Auth.Username)
	assert.Equal(t, "admin", opts.Auth.AuthSource)
}

func TestClientOptions_Invalid(t *testing.T) {
	_, err := ClientOptions(config.ConnectionConfig{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = ClientOptions(config.ConnectionConfig{URI: "postgres://nope"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect(context.Background(), config.ConnectionConfig{URI: "not a uri"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMongoClient_DisconnectIdempotent(t *testing.T) {
	c := &MongoClient{closed: true}
	assert.NoError(t, c.Disconnect(context.Background()))
}
