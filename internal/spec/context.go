package spec

import (
    "strings"
    "time"

    "github.com/getkin/kin-openapi/openapi3"
    "github.com/iancoleman/strcase"
    "github.com/mark3labs/openapi2dyalog/internal/apl"
)

const (
    defaultTitle   = "API"
    defaultVersion = "1.0.0"
)

// ForDocument wraps d in a rendering context.
func ForDocument(d *DocumentContext) *Context {
    return &Context{Kind: DocumentKind, Document: d, Custom: map[string]any{}}
}

// ForOperation wraps o in a rendering context.
func ForOperation(o *OperationContext) *Context {
    return &Context{Kind: OperationKind, Operation: o, Custom: map[string]any{}}
}

// ForModel wraps m in a rendering context.
func ForModel(m *ModelContext) *Context {
    return &Context{Kind: ModelKind, Model: m, Custom: map[string]any{}}
}

// Set stores a custom property. Keys are normalized to snake_case so
// "className" and "class_name" address the same entry.
func (c *Context) Set(key string, value any) *Context {
    if c.Custom == nil {
        c.Custom = map[string]any{}
    }
    c.Custom[strcase.ToSnake(key)] = value
    return c
}

// Get returns a custom property.
func (c *Context) Get(key string) (any, bool) {
    v, ok := c.Custom[strcase.ToSnake(key)]
    return v, ok
}

// NewDocumentContext assembles the document-level context.
func NewDocumentContext(doc *Document, groups []TagGroup, namespace string, generatedAt time.Time) *DocumentContext {
    dc := &DocumentContext{
        Title:       defaultTitle,
        Version:     defaultVersion,
        Groups:      groups,
        GeneratedAt: generatedAt,
        Namespace:   namespace,
    }
    if doc == nil || doc.T == nil {
        return dc
    }
    t := doc.T
    if t.Info != nil {
        if s := safeStr(t.Info.Title); s != "" {
            dc.Title = s
        }
        if s := safeStr(t.Info.Version); s != "" {
            dc.Version = s
        }
        dc.Description = safeStr(t.Info.Description)
    }
    dc.Servers = servers(t)
    if len(dc.Servers) > 0 {
        dc.BaseURL = dc.Servers[0].URL
    }
    if t.Components != nil {
        dc.Schemas = t.Components.Schemas
    }
    dc.Paths = t.Paths
    dc.PathOrder = doc.Paths()
    return dc
}

// RawOperationID returns the declared operationId or one synthesized from
// the method and path, e.g. "get__users_id" for GET /users/{id}.
func RawOperationID(ref OperationRef) string {
    if ref.Operation != nil {
        if id := safeStr(ref.Operation.OperationID); id != "" {
            return id
        }
    }
    p := strings.NewReplacer("/", "_", "{", "", "}", "").Replace(ref.Path)
    return string(ref.Method) + "_" + p
}

// NormalizeOperationID turns a raw operation id into a legal PascalCase name.
func NormalizeOperationID(raw string) string {
    return apl.Name(apl.PascalCase(strings.ReplaceAll(raw, "/", "_")))
}

// NewOperationContext assembles the context of one operation. id must be
// the normalized, group-unique identifier. The request body is resolved
// here, promoting inline schemas into table.
func NewOperationContext(doc *Document, ref OperationRef, id string, table *SyntheticTable) (*OperationContext, error) {
    op := ref.Operation
    o := &Operation{
        RawID:       RawOperationID(ref),
        ID:          id,
        Method:      ref.Method,
        Path:        ref.Path,
        PathExpr:    apl.PathExpr(ref.Path),
        Summary:     safeStr(op.Summary),
        Description: safeStr(op.Description),
        Tags:        trimmedTags(op.Tags),
        Parameters:  mergeParameters(ref),
        Responses:   responses(doc, ref),
        Deprecated:  op.Deprecated,
    }
    var docSecurity openapi3.SecurityRequirements
    if doc != nil && doc.T != nil {
        docSecurity = doc.T.Security
    }
    o.Security = EffectiveSecurity(docSecurity, op.Security)

    if op.RequestBody != nil && op.RequestBody.Value != nil {
        rb := op.RequestBody.Value
        o.RequestBody = &RequestBody{
            Required:    rb.Required,
            Description: safeStr(rb.Description),
            Content:     newMediaTypes(doc, rb.Content, "paths", ref.Path, string(ref.Method), "requestBody", "content"),
        }
    }

    oc := &OperationContext{
        Operation:           o,
        SecuritySchemeNames: SecuritySchemeNames(o.Security),
        HasSecurity:         len(o.Security) > 0,
    }
    resolved, err := ResolveRequestBody(id, o.RequestBody, table)
    if err != nil {
        return nil, err
    }
    if resolved != nil {
        oc.RequestContentType = resolved.ContentType
        oc.RequestBodyType = resolved.BodyType
        oc.FormFields = resolved.FormFields
    }
    return oc, nil
}

// NewModelContext assembles the context of a named schema. order gives the
// declaration order of its properties, when known.
func NewModelContext(name string, schema *openapi3.SchemaRef, order []string, synthetic bool) *ModelContext {
    mc := &ModelContext{
        Name:      name,
        ClassName: apl.Name(apl.PascalCase(name)),
        Synthetic: synthetic,
    }
    if schema == nil || schema.Value == nil {
        return mc
    }
    s := schema.Value
    mc.Description = safeStr(s.Description)
    required := stringSet(s.Required)
    for _, key := range orderedKeys(s.Properties, order) {
        prop := s.Properties[key]
        mp := ModelProperty{
            APIName:  key,
            Name:     apl.Name(apl.CamelCase(key)),
            Type:     MapType(prop),
            Required: required[key],
        }
        if prop != nil && prop.Value != nil {
            mp.Description = safeStr(prop.Value.Description)
            mp.IsArray = prop.Value.Type == "array"
        }
        switch {
        case prop == nil:
        case prop.Ref != "":
            mp.ReferenceType = ReferenceTypeName(prop.Ref)
        case mp.IsArray && prop.Value.Items != nil && prop.Value.Items.Ref != "":
            mp.ReferenceType = ReferenceTypeName(prop.Value.Items.Ref)
        }
        mp.IsReference = mp.ReferenceType != ""
        mc.Properties = append(mc.Properties, mp)
    }
    return mc
}

func servers(t *openapi3.T) []Server {
    var out []Server
    for _, s := range t.Servers {
        if s == nil {
            continue
        }
        out = append(out, Server{URL: safeStr(s.URL), Description: safeStr(s.Description)})
    }
    return out
}

func trimmedTags(tags []string) []string {
    out := make([]string, 0, len(tags))
    for _, t := range tags {
        if t = strings.TrimSpace(t); t != "" {
            out = append(out, t)
        }
    }
    return out
}

// mergeParameters lists path-level parameters followed by operation-level
// ones; an operation parameter with the same location and name replaces
// the path-level entry in place.
func mergeParameters(ref OperationRef) []Parameter {
    var out []Parameter
    index := make(map[string]int)
    add := func(params openapi3.Parameters) {
        for _, pref := range params {
            p, ok := toParameter(pref)
            if !ok {
                continue
            }
            key := paramKey(p.In, p.Name)
            if i, exists := index[key]; exists {
                out[i] = p
                continue
            }
            index[key] = len(out)
            out = append(out, p)
        }
    }
    if ref.PathItem != nil {
        add(ref.PathItem.Parameters)
    }
    add(ref.Operation.Parameters)
    return out
}

func toParameter(pref *openapi3.ParameterRef) (Parameter, bool) {
    if pref == nil || pref.Value == nil {
        return Parameter{}, false
    }
    p := pref.Value
    name := safeStr(p.Name)
    return Parameter{
        Name:        name,
        APLName:     apl.Name(name),
        In:          safeStr(p.In),
        Required:    p.Required,
        Description: safeStr(p.Description),
        Type:        MapType(p.Schema),
    }, true
}

func responses(doc *Document, ref OperationRef) []Response {
    rs := ref.Operation.Responses
    if len(rs) == 0 {
        return nil
    }
    prefix := []string{"paths", ref.Path, string(ref.Method), "responses"}
    var out []Response
    for _, code := range orderedKeys(rs, doc.KeyOrder(prefix...)) {
        rref := rs[code]
        if rref == nil || rref.Value == nil {
            continue
        }
        r := Response{Status: code}
        if rref.Value.Description != nil {
            r.Description = safeStr(*rref.Value.Description)
        }
        for _, ct := range orderedKeys(rref.Value.Content, doc.KeyOrder(append(prefix, code, "content")...)) {
            r.ContentTypes = append(r.ContentTypes, ct)
            if r.Type == "" && mediaKind(ct) == ContentTypeJSON {
                if mt := rref.Value.Content[ct]; mt != nil && mt.Schema != nil {
                    r.Type = MapType(mt.Schema)
                }
            }
        }
        out = append(out, r)
    }
    return out
}
