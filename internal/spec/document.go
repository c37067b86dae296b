package spec

import (
    "sort"
    "strings"

    "github.com/getkin/kin-openapi/openapi3"
    "gopkg.in/yaml.v3"
)

// methodOrder is used for operations whose position cannot be recovered
// from the source bytes.
var methodOrder = []HttpMethod{GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE}

// Document is a parsed OpenAPI v3 document together with the raw bytes it
// was read from. kin-openapi stores paths, methods and properties in maps,
// so the declaration order is read back from the raw YAML/JSON tree.
type Document struct {
    T        *openapi3.T
    Raw      []byte
    Location string // file path or URL; empty for in-memory documents
    Version  int    // 2 for converted Swagger documents, otherwise 3

    root *yaml.Node
}

// NewDocument wraps t. raw may be nil, in which case every ordering falls
// back to sorted keys.
func NewDocument(t *openapi3.T, raw []byte) *Document {
    d := &Document{T: t, Raw: raw, Version: 3}
    if len(raw) == 0 {
        return d
    }
    var n yaml.Node
    if err := yaml.Unmarshal(raw, &n); err != nil {
        return d
    }
    if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
        d.root = n.Content[0]
    }
    return d
}

// KeyOrder returns the keys of the mapping found by walking keys from the
// document root, in source order. It returns nil when the path does not
// exist in the raw document.
func (d *Document) KeyOrder(keys ...string) []string {
    if d == nil || d.root == nil {
        return nil
    }
    // Swagger 2.0 keeps component schemas under "definitions".
    if d.Version == 2 && len(keys) >= 2 && keys[0] == "components" && keys[1] == "schemas" {
        keys = append([]string{"definitions"}, keys[2:]...)
    }
    node := d.root
    for _, k := range keys {
        node = mappingValue(node, k)
        if node == nil {
            return nil
        }
    }
    node = resolveAlias(node)
    if node.Kind != yaml.MappingNode {
        return nil
    }
    out := make([]string, 0, len(node.Content)/2)
    for i := 0; i+1 < len(node.Content); i += 2 {
        out = append(out, node.Content[i].Value)
    }
    return out
}

// Paths returns the document's path templates in declaration order.
func (d *Document) Paths() []string {
    if d == nil || d.T == nil {
        return nil
    }
    return orderedKeys(d.T.Paths, d.KeyOrder("paths"))
}

// Operations lists every operation, paths in declaration order and methods
// in declaration order within each path.
func (d *Document) Operations() []OperationRef {
    var out []OperationRef
    for _, p := range d.Paths() {
        item := d.T.Paths[p]
        if item == nil {
            continue
        }
        seen := make(map[HttpMethod]bool, 8)
        for _, key := range d.KeyOrder("paths", p) {
            m := HttpMethod(strings.ToLower(key))
            if op := operationFor(item, m); op != nil && !seen[m] {
                seen[m] = true
                out = append(out, OperationRef{Path: p, Method: m, Operation: op, PathItem: item})
            }
        }
        for _, m := range methodOrder {
            if op := operationFor(item, m); op != nil && !seen[m] {
                seen[m] = true
                out = append(out, OperationRef{Path: p, Method: m, Operation: op, PathItem: item})
            }
        }
    }
    return out
}

func operationFor(item *openapi3.PathItem, m HttpMethod) *openapi3.Operation {
    switch m {
    case GET:
        return item.Get
    case PUT:
        return item.Put
    case POST:
        return item.Post
    case DELETE:
        return item.Delete
    case OPTIONS:
        return item.Options
    case HEAD:
        return item.Head
    case PATCH:
        return item.Patch
    case TRACE:
        return item.Trace
    }
    return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
    node = resolveAlias(node)
    if node == nil || node.Kind != yaml.MappingNode {
        return nil
    }
    for i := 0; i+1 < len(node.Content); i += 2 {
        if node.Content[i].Value == key {
            return resolveAlias(node.Content[i+1])
        }
    }
    return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
    for node != nil && node.Kind == yaml.AliasNode {
        node = node.Alias
    }
    return node
}

// orderedKeys returns the keys of m, those listed in order first (in that
// order), the rest sorted.
func orderedKeys[T any](m map[string]T, order []string) []string {
    if len(m) == 0 {
        return nil
    }
    out := make([]string, 0, len(m))
    seen := make(map[string]bool, len(m))
    for _, k := range order {
        if _, ok := m[k]; ok && !seen[k] {
            seen[k] = true
            out = append(out, k)
        }
    }
    var rest []string
    for k := range m {
        if !seen[k] {
            rest = append(rest, k)
        }
    }
    sort.Strings(rest)
    return append(out, rest...)
}
