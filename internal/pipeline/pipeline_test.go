package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
)

type fakeCollection struct {
	docs    []interface{}
	findErr error

	findOpts *options.FindOptions
	counted  bool
	pipeline interface{}
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.findOpts = options.MergeFindOptions(opts...)
	return mongo.NewCursorFromDocuments(f.docs, nil, nil)
}

func (f *fakeCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	f.pipeline = pipeline
	return mongo.NewCursorFromDocuments(f.docs, nil, nil)
}

func (f *fakeCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	f.counted = true
	return int64(len(f.docs)), nil
}

func orders(n int) []interface{} {
	docs := make([]interface{}, n)
	for i := range docs {
		d := bson.D{{Key: "n", Value: int32(i)}}
		if i%2 == 0 {
			d = append(d, bson.E{Key: "name", Value: "order"})
		}
		docs[i] = d
	}
	return docs
}

func job() *config.JobConfig {
	cfg := &config.JobConfig{
		Query: config.QueryConfig{Database: "shop", Collection: "orders"},
		Columns: []config.ColumnConfig{
			{Field: "n", Type: "int32"},
			{Field: "name", Type: "string:3"},
		},
		Output: config.OutputConfig{Format: "jsonl"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestPipeline_RunSizesFromCount(t *testing.T) {
	coll := &fakeCollection{docs: orders(3)}
	cfg := job()
	cfg.Query.SelectFields = true

	p, err := New(cfg, coll, zaptest.NewLogger(t))
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.True(t, coll.counted)
	assert.Equal(t, 3, result.Capacity)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 1, result.Blocks)
	assert.Equal(t, int64(1), result.Failures)
	assert.Equal(t, map[string]int64{"n": 0, "name": 1}, result.FieldFailures)
	assert.NotNil(t, coll.findOpts.Projection)

	var lines []map[string]interface{}
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "ord", lines[0]["name"])
	assert.Nil(t, lines[1]["name"])
	assert.Equal(t, 2.0, lines[2]["n"])
}

func TestPipeline_RunBlocksToParquet(t *testing.T) {
	coll := &fakeCollection{docs: orders(5)}
	cfg := job()
	cfg.Query.BlockSize = 2
	cfg.Output.Format = "parquet"
	cfg.Output.Compression = "snappy"
	cfg.Observability.EnableMetrics = true

	p, err := New(cfg, coll, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.False(t, coll.counted)
	assert.Equal(t, 2, result.Capacity)
	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, 3, result.Blocks)
	assert.Nil(t, coll.findOpts.Projection)

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(out.Bytes()),
		parquet.NewReaderProperties(nil), pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(5), tbl.NumRows())
}

func TestPipeline_RunEmptyResult(t *testing.T) {
	p, err := New(job(), &fakeCollection{}, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := p.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Rows)
	assert.Equal(t, 0, out.Len())
}

func TestPipeline_Aggregate(t *testing.T) {
	coll := &fakeCollection{docs: orders(2)}
	cfg := job()
	cfg.Query.Pipeline = []string{`{"$match": {}}`}

	p, err := New(cfg, coll, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), &bytes.Buffer{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Query.Rows = 10
	result, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.NotNil(t, coll.pipeline)
}

func TestPipeline_FindError(t *testing.T) {
	boom := errors.Sentinel("not authorized")
	cfg := job()
	cfg.Query.Rows = 1
	p, err := New(cfg, &fakeCollection{findErr: boom}, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), &bytes.Buffer{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	assert.True(t, errors.Is(err, boom))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeCollection{}, nil)
	assert.Error(t, err)

	_, err = New(job(), nil, nil)
	assert.Error(t, err)

	bad := job()
	bad.Columns = nil
	_, err = New(bad, &fakeCollection{}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestPipeline_NewColumnSet(t *testing.T) {
	p, err := New(job(), &fakeCollection{}, nil)
	require.NoError(t, err)

	set, err := p.NewColumnSet(4)
	require.NoError(t, err)
	assert.NoError(t, set.Ready())
	assert.Equal(t, []string{"n", "name"}, set.Fields())
	assert.Equal(t, 3, set.Column(1).Stride())
	assert.Equal(t, []byte{1, 1, 1, 1}, set.Column(0).Mask())
}
