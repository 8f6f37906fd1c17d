// Package config loads strata job configurations.
//
// A job is a YAML document with five sections:
//
//	connection:
//	  uri: ${MONGO_URI:-mongodb://localhost:27017}
//	  connect_timeout: 10s
//	query:
//	  database: shop
//	  collection: orders
//	  filter: '{"status": "paid", "total": {"$gt": 100}}'
//	  select_fields: true
//	  rows: 0          # size buffers from a count
//	  block_size: 0    # load everything at once
//	columns:
//	  - {field: _id, type: id}
//	  - {field: total, type: float64}
//	  - {field: customer.name, type: "string:32"}
//	output:
//	  path: orders.parquet
//	  compression: zstd
//	observability:
//	  log_level: info
//	  enable_metrics: true
//
// ${VAR} references are replaced with environment values before parsing;
// ${VAR:-fallback} supplies a default. Filters and pipeline stages are
// Extended JSON and are converted to BSON with FilterDocument and
// PipelineDocuments.
//
// LoadJob reads a file, applies defaults and validates it in one step.
// Every error it returns has type errors.ErrorTypeConfig or
// errors.ErrorTypeFile.
package config
