package export

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

var testOID = primitive.ObjectID{0x50, 0x7f, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x11}

// loadedSet returns a three-row set of (_id id, n int64, s string:8, d date)
// where row 1 is missing n and s.
func loadedSet(t *testing.T) *columnar.Set {
	t.Helper()
	specs := []struct {
		field string
		typ   columnar.Type
		arg   int
	}{
		{"_id", columnar.TypeObjectID, 0},
		{"n", columnar.TypeInt64, 0},
		{"s", columnar.TypeString, 8},
		{"d", columnar.TypeDate, 0},
	}
	set, err := columnar.New(len(specs), 3)
	require.NoError(t, err)
	for i, sp := range specs {
		s, m, err := columnar.AllocColumn(sp.typ, sp.arg, 3)
		require.NoError(t, err)
		require.NoError(t, set.SetColumn(i, sp.field, sp.typ, sp.arg, s, m))
	}

	docs := []bson.D{
		{{Key: "_id", Value: testOID}, {Key: "n", Value: int64(10)}, {Key: "s", Value: "alpha"}, {Key: "d", Value: primitive.DateTime(0)}},
		{{Key: "_id", Value: testOID}, {Key: "d", Value: primitive.DateTime(1000)}},
		{{Key: "_id", Value: testOID}, {Key: "n", Value: int64(-3)}, {Key: "s", Value: "gamma"}, {Key: "d", Value: primitive.DateTime(2000)}},
	}
	for row, d := range docs {
		b, err := bson.Marshal(d)
		require.NoError(t, err)
		set.DecodeRow(b, row)
	}
	return set
}

func record(t *testing.T, set *columnar.Set, rows int) arrow.Record {
	t.Helper()
	rec, err := set.ToArrow(memory.NewGoAllocator(), rows)
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"parquet": Parquet, "PARQUET": Parquet, "arrow": Arrow, "ipc": Arrow,
		"feather": Arrow, "jsonl": JSONLines, "ndjson": JSONLines,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("csv")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"out/orders.parquet", Parquet, true},
		{"orders.arrow", Arrow, true},
		{"orders.jsonl.zst", JSONLines, true},
		{"orders.ndjson.gz", JSONLines, true},
		{"orders.csv", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatFromPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{}.Validate(Parquet))
	assert.NoError(t, Options{Compression: compression.Snappy}.Validate(Parquet))
	assert.NoError(t, Options{Compression: compression.Zstd}.Validate(Arrow))
	assert.NoError(t, Options{Compression: compression.S2}.Validate(JSONLines))
	assert.Error(t, Options{Compression: compression.Snappy}.Validate(Arrow))
	assert.Error(t, Options{Compression: compression.S2}.Validate(Parquet))
	assert.Error(t, Options{}.Validate(Format("csv")))
}

func TestWrite_Parquet(t *testing.T) {
	set := loadedSet(t)
	rec := record(t, set, 3)

	for _, alg := range []compression.Algorithm{compression.None, compression.Snappy, compression.Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, Parquet, rec, Options{Compression: alg}))

			tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
				parquet.NewReaderProperties(memory.NewGoAllocator()), pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
			require.NoError(t, err)
			defer tbl.Release()

			assert.Equal(t, int64(3), tbl.NumRows())
			assert.Equal(t, int64(4), tbl.NumCols())

			n := tbl.Column(1).Data().Chunk(0).(*array.Int64)
			assert.Equal(t, int64(10), n.Value(0))
			assert.True(t, n.IsNull(1))
			assert.Equal(t, int64(-3), n.Value(2))

			s := tbl.Column(2).Data().Chunk(0).(*array.String)
			assert.Equal(t, "alpha", s.Value(0))
		})
	}
}

func TestWriter_ParquetBlocks(t *testing.T) {
	set := loadedSet(t)
	var buf bytes.Buffer

	w, err := NewWriter(&buf, Parquet, set.ArrowSchema(), Options{Compression: compression.Snappy})
	require.NoError(t, err)
	require.NoError(t, w.Write(record(t, set, 2)))
	require.NoError(t, w.Write(record(t, set, 0)))
	require.NoError(t, w.Write(record(t, set, 3)))
	assert.Equal(t, int64(5), w.Rows())
	require.NoError(t, w.Close())

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(nil), pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(5), tbl.NumRows())
}

func TestWrite_Arrow(t *testing.T) {
	set := loadedSet(t)
	rec := record(t, set, 3)

	for _, alg := range []compression.Algorithm{compression.None, compression.LZ4, compression.Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, Arrow, rec, Options{Compression: alg}))

			r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
			require.NoError(t, err)
			defer r.Close()

			require.Equal(t, 1, r.NumRecords())
			got, err := r.Record(0)
			require.NoError(t, err)
			assert.True(t, array.RecordEqual(rec, got))
			assert.True(t, rec.Schema().Equal(r.Schema()))
		})
	}
}

func readLines(t *testing.T, buf *bytes.Buffer, alg compression.Algorithm) []map[string]interface{} {
	t.Helper()
	r, err := compression.NewReader(buf, alg)
	require.NoError(t, err)
	defer r.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWrite_JSONLines(t *testing.T) {
	set := loadedSet(t)
	rec := record(t, set, 3)

	for _, alg := range []compression.Algorithm{compression.None, compression.Gzip, compression.Zstd, compression.LZ4} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, JSONLines, rec, Options{Compression: alg}))

			lines := readLines(t, &buf, alg)
			require.Len(t, lines, 3)

			assert.Equal(t, testOID.Hex(), lines[0]["_id"])
			assert.Equal(t, 10.0, lines[0]["n"])
			assert.Equal(t, "alpha", lines[0]["s"])
			assert.Equal(t, "1970-01-01T00:00:00Z", lines[0]["d"])

			assert.Nil(t, lines[1]["n"])
			assert.Contains(t, lines[1], "n")
			assert.Nil(t, lines[1]["s"])
			assert.Equal(t, "1970-01-01T00:00:01Z", lines[1]["d"])
		})
	}
}

func TestWrite_JSONLinesKeyOrder(t *testing.T) {
	set := loadedSet(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSONLines, record(t, set, 1), Options{}))

	assert.Equal(t,
		`{"_id":"507f1f77bcf86cd799439011","n":10,"s":"alpha","d":"1970-01-01T00:00:00Z"}`+"\n",
		buf.String())
}

func TestWriter_SchemaMismatch(t *testing.T) {
	set := loadedSet(t)
	other, err := columnar.New(1, 1)
	require.NoError(t, err)
	s, m, err := columnar.AllocColumn(columnar.TypeBool, 0, 1)
	require.NoError(t, err)
	require.NoError(t, other.SetColumn(0, "b", columnar.TypeBool, 0, s, m))

	for _, f := range Formats() {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, f, set.ArrowSchema(), Options{})
		require.NoError(t, err)
		err = w.Write(record(t, other, 1))
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), string(f))
		_ = w.Close()
	}

	_, err = NewWriter(&bytes.Buffer{}, Parquet, nil, Options{})
	assert.Error(t, err)
}
