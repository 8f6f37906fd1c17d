package query

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

type fakeCollection struct {
	docs []interface{}
	err  error

	filter    interface{}
	pipeline  interface{}
	findOpts  *options.FindOptions
	aggOpts   *options.AggregateOptions
	countOpts *options.CountOptions
}

func (f *fakeCollection) cursor() (*mongo.Cursor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return mongo.NewCursorFromDocuments(f.docs, nil, nil)
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.filter = filter
	f.findOpts = options.MergeFindOptions(opts...)
	return f.cursor()
}

func (f *fakeCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	f.pipeline = pipeline
	f.aggOpts = options.MergeAggregateOptions(opts...)
	return f.cursor()
}

func (f *fakeCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	f.filter = filter
	f.countOpts = options.MergeCountOptions(opts...)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.docs)), nil
}

func TestFind(t *testing.T) {
	coll := &fakeCollection{docs: []interface{}{
		bson.D{{Key: "a", Value: int32(1)}},
		bson.D{{Key: "a", Value: int32(2)}},
	}}
	filter := mustDoc(t, bson.D{{Key: "a", Value: bson.D{{Key: "$gt", Value: 0}}}})
	projection := ProjectFields("a")

	stream, err := Find(context.Background(), coll, Request{
		Filter:       filter,
		Projection:   projection,
		SelectFields: true,
		Skip:         1,
		Limit:        10,
		BatchSize:    100,
	})
	require.NoError(t, err)

	assert.Equal(t, filter, coll.filter)
	assert.Equal(t, projection, coll.findOpts.Projection)
	assert.Equal(t, int64(1), *coll.findOpts.Skip)
	assert.Equal(t, int64(10), *coll.findOpts.Limit)
	assert.Equal(t, int32(100), *coll.findOpts.BatchSize)

	set, err := columnar.New(1, 5)
	require.NoError(t, err)
	s, m, err := columnar.AllocColumn(columnar.TypeInt64, 0, 5)
	require.NoError(t, err)
	require.NoError(t, set.SetColumn(0, "a", columnar.TypeInt64, 0, s, m))

	session, err := NewSession(stream, set)
	require.NoError(t, err)
	defer session.Close(context.Background())

	rows, err := session.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, int64(2), set.Column(0).Int64At(1))
}

func TestFind_Defaults(t *testing.T) {
	coll := &fakeCollection{}
	_, err := Find(context.Background(), coll, Request{Projection: ProjectFields("a")})
	require.NoError(t, err)

	assert.Equal(t, emptyDocument(), coll.filter)
	assert.Nil(t, coll.findOpts.Projection)
	assert.Nil(t, coll.findOpts.Skip)
	assert.Nil(t, coll.findOpts.Limit)
	assert.Nil(t, coll.findOpts.BatchSize)
}

func TestFind_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "malformed filter", req: Request{Filter: bson.Raw{1, 2, 3}}},
		{name: "negative skip", req: Request{Skip: -1}},
		{name: "negative limit", req: Request{Limit: -5}},
		{name: "selection without projection", req: Request{SelectFields: true}},
		{name: "malformed projection", req: Request{SelectFields: true, Projection: bson.Raw{9}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll := &fakeCollection{}
			_, err := Find(context.Background(), coll, tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.Nil(t, coll.findOpts)
		})
	}
}

func TestFind_ServerError(t *testing.T) {
	boom := stderrors.New("no reachable servers")
	_, err := Find(context.Background(), &fakeCollection{err: boom}, Request{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	assert.True(t, stderrors.Is(err, boom))
}

func TestAggregate(t *testing.T) {
	coll := &fakeCollection{docs: []interface{}{bson.D{{Key: "n", Value: int32(3)}}}}
	match := mustDoc(t, bson.D{{Key: "$match", Value: bson.D{}}})

	stream, err := Aggregate(context.Background(), coll, []bson.Raw{match}, 50)
	require.NoError(t, err)
	assert.Equal(t, []bson.Raw{match}, coll.pipeline)
	assert.Equal(t, int32(50), *coll.aggOpts.BatchSize)

	doc, ok := stream.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, int32(3), doc.Lookup("n").Int32())

	_, err = Aggregate(context.Background(), coll, []bson.Raw{match, {0xff}}, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Aggregate(context.Background(), coll, []bson.Raw{nil}, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Aggregate(context.Background(), coll, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []bson.Raw{}, coll.pipeline)
}

func TestCount(t *testing.T) {
	coll := &fakeCollection{docs: []interface{}{bson.D{}, bson.D{}, bson.D{}}}

	n, err := Count(context.Background(), coll, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Nil(t, coll.countOpts.Skip)
	assert.Nil(t, coll.countOpts.Limit)

	_, err = Count(context.Background(), coll, nil, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *coll.countOpts.Skip)
	assert.Equal(t, int64(1), *coll.countOpts.Limit)

	_, err = Count(context.Background(), coll, nil, -1, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Count(context.Background(), &fakeCollection{err: stderrors.New("down")}, nil, 0, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}
