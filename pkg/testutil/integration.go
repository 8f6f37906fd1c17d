package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ajitpratap0/strata/pkg/clients"
	"github.com/ajitpratap0/strata/pkg/config"
)

// MongoSuite is the base for tests against a live MongoDB server. Each suite
// gets its own scratch database, dropped on teardown.
type MongoSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	client    *clients.MongoClient
	database  string
	tempDir   string
	startTime time.Time
}

// SetupSuite connects to the server named by MongoURIEnv.
func (s *MongoSuite) SetupSuite() {
	uri := MongoURI(s.T())
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	cfg := config.NewJobConfig().Connection
	cfg.URI = uri
	cfg.ServerSelectionTimeout = 5 * time.Second

	client, err := clients.Connect(s.ctx, cfg)
	require.NoError(s.T(), err)
	s.client = client
	s.database = fmt.Sprintf("strata_test_%d", time.Now().UnixNano())

	tempDir, err := os.MkdirTemp("", "strata-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite drops the scratch database and disconnects.
func (s *MongoSuite) TearDownSuite() {
	if s.client != nil {
		if err := s.client.Client().Database(s.database).Drop(context.Background()); err != nil {
			s.T().Logf("failed to drop %s: %v", s.database, err)
		}
		_ = s.client.Disconnect(context.Background())
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.T().Logf("MongoDB suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context.
func (s *MongoSuite) Context() context.Context { return s.ctx }

// Database returns the scratch database name.
func (s *MongoSuite) Database() string { return s.database }

// TempDir returns a directory removed on teardown.
func (s *MongoSuite) TempDir() string { return s.tempDir }

// Seed replaces the contents of coll with docs and returns the collection.
func (s *MongoSuite) Seed(coll string, docs ...interface{}) *mongo.Collection {
	c := s.client.Collection(s.database, coll)
	require.NoError(s.T(), c.Drop(s.ctx))
	if len(docs) > 0 {
		_, err := c.InsertMany(s.ctx, docs)
		require.NoError(s.T(), err)
	}
	return c
}
