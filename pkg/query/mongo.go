package query

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Collection is the part of *mongo.Collection used to issue queries.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

var _ Collection = (*mongo.Collection)(nil)

// Request describes a find query. Filter and Projection are pre-encoded
// BSON documents; a nil Filter matches everything. Projection is only sent
// when SelectFields is set. Zero Skip, Limit and BatchSize leave the server
// defaults.
type Request struct {
	Filter       bson.Raw
	Projection   bson.Raw
	Skip         int64
	Limit        int64
	SelectFields bool
	BatchSize    int32
}

func emptyDocument() bson.Raw {
	return bson.Raw(bsoncore.NewDocumentBuilder().Build())
}

func validateDocument(doc bson.Raw, what string) (bson.Raw, error) {
	if doc == nil {
		return emptyDocument(), nil
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid "+what+" document")
	}
	return doc, nil
}

func validateRange(skip, limit int64) error {
	if skip < 0 {
		return errors.New(errors.ErrorTypeValidation, "skip must not be negative").WithDetail("skip", skip)
	}
	if limit < 0 {
		return errors.New(errors.ErrorTypeValidation, "limit must not be negative").WithDetail("limit", limit)
	}
	return nil
}

// Find issues req against coll and returns a stream over the cursor.
func Find(ctx context.Context, coll Collection, req Request) (Stream, error) {
	filter, err := validateDocument(req.Filter, "filter")
	if err != nil {
		return nil, err
	}
	if err := validateRange(req.Skip, req.Limit); err != nil {
		return nil, err
	}

	opts := options.Find()
	if req.SelectFields {
		if req.Projection == nil {
			return nil, errors.New(errors.ErrorTypeValidation, "field selection requested without a projection")
		}
		projection, err := validateDocument(req.Projection, "projection")
		if err != nil {
			return nil, err
		}
		opts.SetProjection(projection)
	}
	if req.Skip > 0 {
		opts.SetSkip(req.Skip)
	}
	if req.Limit > 0 {
		opts.SetLimit(req.Limit)
	}
	if req.BatchSize > 0 {
		opts.SetBatchSize(req.BatchSize)
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "find failed")
	}
	return NewCursorStream(cursor), nil
}

// Aggregate runs pipeline against coll and returns a stream over the cursor.
func Aggregate(ctx context.Context, coll Collection, pipeline []bson.Raw, batchSize int32) (Stream, error) {
	for i, stage := range pipeline {
		if stage == nil {
			return nil, errors.New(errors.ErrorTypeValidation, "empty pipeline stage").WithDetail("stage", i)
		}
		if err := stage.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid pipeline stage").WithDetail("stage", i)
		}
	}
	if pipeline == nil {
		pipeline = []bson.Raw{}
	}

	opts := options.Aggregate()
	if batchSize > 0 {
		opts.SetBatchSize(batchSize)
	}
	cursor, err := coll.Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "aggregate failed")
	}
	return NewCursorStream(cursor), nil
}

// Count returns the number of documents matching filter after skip and
// limit, used to size column buffers before a load.
func Count(ctx context.Context, coll Collection, filter bson.Raw, skip, limit int64) (int64, error) {
	filter, err := validateDocument(filter, "filter")
	if err != nil {
		return 0, err
	}
	if err := validateRange(skip, limit); err != nil {
		return 0, err
	}

	opts := options.Count()
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	n, err := coll.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "count failed")
	}
	return n, nil
}
