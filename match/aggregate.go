package match

import (
	"fmt"

	"github.com/solatis/mongofront/bsondoc"
)

// Aggregate runs a limited pipeline over docs: $match, $project, $sort,
// $skip, $limit, $group, $unwind, applied in stage order.
func Aggregate(docs []*bsondoc.Document, pipeline bsondoc.Array) ([]*bsondoc.Document, error) {
	cur := docs
	for i, stageVal := range pipeline {
		stage, ok := stageVal.(*bsondoc.Document)
		if !ok || stage.Len() != 1 {
			return nil, fmt.Errorf("match: pipeline stage %d: expected a single-key stage document", i)
		}
		var stageName string
		var arg bsondoc.Value
		stage.Range(func(k string, v bsondoc.Value) bool {
			stageName, arg = k, v
			return false
		})

		switch stageName {
		case "$match":
			spec, ok := arg.(*bsondoc.Document)
			if !ok {
				return nil, fmt.Errorf("match: $match: expected a document")
			}
			out := cur[:0:0]
			for _, d := range cur {
				if Matches(d, spec) {
					out = append(out, d)
				}
			}
			cur = out

		case "$project":
			spec, ok := arg.(*bsondoc.Document)
			if !ok {
				return nil, fmt.Errorf("match: $project: expected a document")
			}
			out := make([]*bsondoc.Document, len(cur))
			for i, d := range cur {
				out[i] = Project(d, spec)
			}
			cur = out

		case "$sort":
			spec, ok := arg.(*bsondoc.Document)
			if !ok {
				return nil, fmt.Errorf("match: $sort: expected a document")
			}
			Sort(cur, ParseSortDocument(spec))

		case "$skip":
			n, ok := numericValue(arg)
			if !ok {
				return nil, fmt.Errorf("match: $skip: expected a number")
			}
			cur = skipDocs(cur, int(n))

		case "$limit":
			n, ok := numericValue(arg)
			if !ok {
				return nil, fmt.Errorf("match: $limit: expected a number")
			}
			cur = limitDocs(cur, int(n))

		case "$group":
			spec, ok := arg.(*bsondoc.Document)
			if !ok {
				return nil, fmt.Errorf("match: $group: expected a document")
			}
			cur = Group(cur, spec)

		case "$unwind":
			path, ok := arg.(bsondoc.String)
			if !ok {
				return nil, fmt.Errorf("match: $unwind: expected a field path string")
			}
			cur = Unwind(cur, string(path))

		default:
			return nil, fmt.Errorf("match: unsupported pipeline stage %q", stageName)
		}
	}
	return cur, nil
}

func skipDocs(docs []*bsondoc.Document, n int) []*bsondoc.Document {
	if n <= 0 {
		return docs
	}
	if n >= len(docs) {
		return nil
	}
	return docs[n:]
}

func limitDocs(docs []*bsondoc.Document, n int) []*bsondoc.Document {
	if n <= 0 || n >= len(docs) {
		return docs
	}
	return docs[:n]
}
