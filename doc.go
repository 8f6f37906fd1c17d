// Package strata loads MongoDB query results into typed, pre-allocated
// column buffers and exports them in columnar formats.
//
// Each configured field gets a storage buffer of fixed-width slots and a
// validity mask with one byte per row. A query cursor is drained document by
// document; for every row each field is located by its (possibly dotted)
// path, converted to the column's semantic type and written to its slot.
// Fields that are absent or carry an incompatible wire type leave the slot
// untouched and set the mask byte.
//
// # Architecture
//
// The module is layered bottom-up:
//
//   - pkg/columnar: semantic types, column sets and per-type loaders
//   - pkg/query: cursor streams, query sessions and block loading
//   - pkg/export: Parquet, Arrow IPC and JSON Lines writers
//   - pkg/config: YAML job configuration
//   - internal/pipeline: sizing, allocation, load and export in one run
//   - cmd/strata: the command line interface
//
// # Quick Start
//
// Describe a job:
//
//	connection:
//	  uri: ${MONGODB_URI:-mongodb://localhost:27017}
//	query:
//	  database: shop
//	  collection: orders
//	  filter: '{"status": "paid"}'
//	columns:
//	  - field: _id
//	    type: id
//	  - field: total
//	    type: float64
//	  - field: customer.name
//	    type: string:32
//	output:
//	  path: orders.parquet
//	  compression: zstd
//
// Run it:
//
//	strata load --config orders.yaml
//	strata load --config orders.yaml --block-size 100000 --output orders.jsonl.gz
//
// # Column Types
//
//	strata types
//
// lists every semantic type with its slot width. Variable-width types
// (string, binary, bson, array) take the width as an argument: "string:32".
package strata
