package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

type liveSuite struct {
	testutil.MongoSuite
}

func TestLiveMongo(t *testing.T) {
	testutil.MongoURI(t)
	suite.Run(t, new(liveSuite))
}

func (s *liveSuite) TestFindToArrow() {
	docs := make([]interface{}, 25)
	for i := range docs {
		docs[i] = bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "seq", Value: int64(i)},
			{Key: "user", Value: bson.D{{Key: "name", Value: "user"}}},
		}
	}
	coll := s.Seed("orders", docs...)

	cfg := job()
	cfg.Query.Database = s.Database()
	cfg.Query.Filter = `{"seq": {"$gte": 5}}`
	cfg.Query.SelectFields = true
	cfg.Query.BlockSize = 8
	cfg.Columns = []config.ColumnConfig{
		{Field: "_id", Type: "id"},
		{Field: "seq", Type: "int64"},
		{Field: "user.name", Type: "string:8"},
	}
	cfg.Output.Format = "arrow"

	p, err := New(cfg, coll, testutil.TestLogger(s.T()))
	s.Require().NoError(err)

	path := filepath.Join(s.TempDir(), "orders.arrow")
	f, err := os.Create(path)
	s.Require().NoError(err)
	result, err := p.Run(s.Context(), f)
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	s.Equal(20, result.Rows)
	s.Equal(3, result.Blocks)
	s.Equal(int64(0), result.Failures)

	in, err := os.Open(path)
	s.Require().NoError(err)
	defer in.Close()
	r, err := ipc.NewFileReader(in, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(s.T(), err)
	defer r.Close()

	var rows int64
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		s.Require().NoError(err)
		rows += rec.NumRows()
	}
	s.Equal(int64(20), rows)
}
