package spec

import (
    "strings"

    "github.com/getkin/kin-openapi/openapi3"
)

// OperationGroup is the raw (unresolved) form of a TagGroup.
type OperationGroup struct {
    Tag        string
    Operations []OperationRef
}

// TagCount is one line of an operation summary.
type TagCount struct {
    Tag   string
    Count int
}

// GroupOperations files every operation that passes the filters under its
// first tag (or DefaultTag). Groups appear in order of first use and keep
// the document order of their operations.
func GroupOperations(doc *Document, opts ...BuildOption) []OperationGroup {
    cfg := newBuildConfig(opts)

    var groups []OperationGroup
    index := make(map[string]int)
    for _, ref := range doc.Operations() {
        if !cfg.allow(ref) {
            continue
        }
        tag := primaryTag(ref.Operation)
        i, ok := index[tag]
        if !ok {
            i = len(groups)
            index[tag] = i
            groups = append(groups, OperationGroup{Tag: tag})
        }
        groups[i].Operations = append(groups[i].Operations, ref)
    }
    return groups
}

// OperationSummary counts operations per tag group.
func OperationSummary(doc *Document, opts ...BuildOption) []TagCount {
    groups := GroupOperations(doc, opts...)
    out := make([]TagCount, 0, len(groups))
    for _, g := range groups {
        out = append(out, TagCount{Tag: g.Tag, Count: len(g.Operations)})
    }
    return out
}

func primaryTag(op *openapi3.Operation) string {
    if op != nil {
        for _, t := range op.Tags {
            if t = strings.TrimSpace(t); t != "" {
                return t
            }
        }
    }
    return DefaultTag
}
