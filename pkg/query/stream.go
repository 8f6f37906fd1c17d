package query

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stream is a pull-based source of BSON documents.
//
// Err reports a transport error; once non-nil the stream is unusable.
// More reports whether further documents may exist. Next returns the next
// document, or false when none was produced on this call; a false result
// with More still true is not an error.
type Stream interface {
	Err() error
	More() bool
	Next(ctx context.Context) (bson.Raw, bool)
	Close(ctx context.Context) error
}

// CursorStream adapts a *mongo.Cursor to Stream.
type CursorStream struct {
	cursor    *mongo.Cursor
	exhausted bool
}

// NewCursorStream wraps cursor.
func NewCursorStream(cursor *mongo.Cursor) *CursorStream {
	return &CursorStream{cursor: cursor}
}

// Err returns the cursor error.
func (s *CursorStream) Err() error {
	return s.cursor.Err()
}

// More is true until the cursor has returned its last document.
func (s *CursorStream) More() bool {
	return !s.exhausted
}

// Next advances the cursor. The returned document aliases the cursor's
// batch and is only valid until the following call.
func (s *CursorStream) Next(ctx context.Context) (bson.Raw, bool) {
	if s.exhausted {
		return nil, false
	}
	if !s.cursor.Next(ctx) {
		s.exhausted = true
		return nil, false
	}
	return s.cursor.Current, true
}

// Close kills the server-side cursor.
func (s *CursorStream) Close(ctx context.Context) error {
	s.exhausted = true
	return s.cursor.Close(ctx)
}

// SliceStream yields documents held in memory. It can simulate a transport
// error after a given number of documents and nil documents at chosen
// positions.
type SliceStream struct {
	docs   []bson.Raw
	pos    int
	err    error
	failAt int
	served int
	closed int
}

// NewSliceStream returns a stream over docs. A nil entry makes Next return
// false for that position without ending the stream.
func NewSliceStream(docs ...bson.Raw) *SliceStream {
	return &SliceStream{docs: docs, failAt: -1}
}

// FailAfter makes the stream report err once n documents have been served.
func (s *SliceStream) FailAfter(n int, err error) *SliceStream {
	s.failAt = n
	s.err = err
	return s
}

// Err returns the injected error once its position has been reached.
func (s *SliceStream) Err() error {
	if s.failAt >= 0 && s.served >= s.failAt {
		return s.err
	}
	return nil
}

// More reports whether unread positions remain.
func (s *SliceStream) More() bool {
	return s.closed == 0 && s.pos < len(s.docs)
}

// Next returns the document at the current position.
func (s *SliceStream) Next(ctx context.Context) (bson.Raw, bool) {
	if !s.More() || s.Err() != nil {
		return nil, false
	}
	doc := s.docs[s.pos]
	s.pos++
	if doc == nil {
		return nil, false
	}
	s.served++
	return doc, true
}

// Close marks the stream closed.
func (s *SliceStream) Close(ctx context.Context) error {
	s.closed++
	return nil
}

// Remaining returns the number of unread positions.
func (s *SliceStream) Remaining() int {
	return len(s.docs) - s.pos
}

// CloseCount returns how many times Close was called.
func (s *SliceStream) CloseCount() int {
	return s.closed
}
