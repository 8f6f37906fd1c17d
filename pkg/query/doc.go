// Package query issues MongoDB queries and drains their cursors into a
// columnar.Set.
//
// A Session owns a Stream and borrows a Set. Load pulls documents until the
// Set is full, the stream runs dry or the transport fails:
//
//	stream, err := query.Find(ctx, coll, query.Request{
//		Filter:       filter,
//		Projection:   query.Projection(set),
//		SelectFields: true,
//	})
//	if err != nil {
//		return err
//	}
//	session, err := query.NewSession(stream, set)
//	if err != nil {
//		return err
//	}
//	defer session.Close(ctx)
//	rows, err := session.Load(ctx)
//
// Field failures never surface as errors; they show up in the Set's masks
// and in Session.Failures. An error from Load is always a transport error
// or a closed session, and the returned row count is valid either way.
//
// For results larger than the buffers, LoadBlocks reuses the Set for
// successive blocks.
package query
