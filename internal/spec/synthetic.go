package spec

import (
    "strconv"
    "sync"

    "github.com/getkin/kin-openapi/openapi3"
    "github.com/mark3labs/openapi2dyalog/internal/apl"
)

// Role suffixes appended to an operation id to name a promoted body schema.
const (
    RequestSuffix     = "Request"
    RequestItemSuffix = "RequestItem"
)

// SyntheticModel is an inline schema promoted to a named model.
type SyntheticModel struct {
    Name          string
    OperationID   string
    Schema        *openapi3.SchemaRef
    PropertyOrder []string
}

// SyntheticTable registers promoted inline schemas for one generation run.
// It is safe for concurrent use; name selection is serialized so the
// numbering is a total order over all promotions.
type SyntheticTable struct {
    mu       sync.Mutex
    byName   map[string]int
    reserved map[string]bool
    models   []SyntheticModel
    drained  bool
}

func NewSyntheticTable() *SyntheticTable {
    return &SyntheticTable{byName: make(map[string]int), reserved: make(map[string]bool)}
}

// Reserve marks names that promoted models must not take, such as the
// names of declared component schemas.
func (t *SyntheticTable) Reserve(names ...string) {
    t.mu.Lock()
    defer t.mu.Unlock()
    for _, n := range names {
        t.reserved[n] = true
    }
}

// Promote registers schema under PascalCase(operationID)+suffix, appending
// 2, 3, ... until the name is free, and returns the chosen name.
func (t *SyntheticTable) Promote(operationID, suffix string, schema *openapi3.SchemaRef, order []string) string {
    base := apl.PascalCase(operationID) + suffix

    t.mu.Lock()
    defer t.mu.Unlock()

    name := base
    for n := 2; ; n++ {
        if _, taken := t.byName[name]; !taken && !t.reserved[name] {
            break
        }
        name = base + strconv.Itoa(n)
    }
    t.byName[name] = len(t.models)
    t.models = append(t.models, SyntheticModel{
        Name:          name,
        OperationID:   operationID,
        Schema:        schema,
        PropertyOrder: append([]string(nil), order...),
    })
    return name
}

// Lookup returns the model registered under name.
func (t *SyntheticTable) Lookup(name string) (SyntheticModel, bool) {
    t.mu.Lock()
    defer t.mu.Unlock()
    i, ok := t.byName[name]
    if !ok {
        return SyntheticModel{}, false
    }
    return t.models[i], true
}

func (t *SyntheticTable) Len() int {
    t.mu.Lock()
    defer t.mu.Unlock()
    return len(t.models)
}

// Drain returns every registered model in registration order. Only the
// first call returns models; later calls return nil.
func (t *SyntheticTable) Drain() []SyntheticModel {
    t.mu.Lock()
    defer t.mu.Unlock()
    if t.drained {
        return nil
    }
    t.drained = true
    return append([]SyntheticModel(nil), t.models...)
}
