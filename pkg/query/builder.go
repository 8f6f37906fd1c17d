package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/ajitpratap0/strata/pkg/columnar"
)

// Projection builds {field: 1, ...} for the fields of set in column order.
// Repeated fields are emitted once. A path below a field that is already
// projected is dropped, since the server rejects overlapping paths and the
// parent brings the child along.
func Projection(set *columnar.Set) bson.Raw {
	return ProjectFields(set.Fields()...)
}

// ProjectFields builds a projection document for fields.
func ProjectFields(fields ...string) bson.Raw {
	keep := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		keep[f] = struct{}{}
	}

	b := bsoncore.NewDocumentBuilder()
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup || hasProjectedAncestor(f, keep) {
			continue
		}
		seen[f] = struct{}{}
		b.AppendInt32(f, 1)
	}
	return bson.Raw(b.Build())
}

func hasProjectedAncestor(field string, keep map[string]struct{}) bool {
	for i := strings.LastIndexByte(field, '.'); i > 0; i = strings.LastIndexByte(field[:i], '.') {
		if _, ok := keep[field[:i]]; ok {
			return true
		}
	}
	return false
}
