package spec

import (
    "errors"
    "fmt"
    "mime"
    "strings"

    "github.com/getkin/kin-openapi/openapi3"
    "github.com/mark3labs/openapi2dyalog/internal/apl"
)

// ErrUnsupportedMediaType matches every *UnsupportedMediaTypeError.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// UnsupportedMediaTypeError reports a request body none of whose
// representations can be generated.
type UnsupportedMediaTypeError struct {
    OperationID  string
    ContentTypes []string
}

func (e *UnsupportedMediaTypeError) Error() string {
    return fmt.Sprintf("operation %s: unsupported request body media type(s): %s",
        e.OperationID, strings.Join(e.ContentTypes, ", "))
}

func (e *UnsupportedMediaTypeError) Is(target error) bool {
    return target == ErrUnsupportedMediaType
}

// ResolvedBody is the single representation chosen for a request body.
type ResolvedBody struct {
    ContentType string
    BodyType    string // empty for binary or untyped payloads
    FormFields  []FormField
}

var supportedMediaTypes = map[string]bool{
    ContentTypeJSON:          true,
    ContentTypeOctetStream:   true,
    ContentTypeMultipartForm: true,
}

// ResolveRequestBody picks the first representation of body, in declaration
// order, whose media type is JSON, octet-stream or multipart form. Inline
// JSON objects are promoted through table. A nil or empty body resolves to
// nil.
func ResolveRequestBody(operationID string, body *RequestBody, table *SyntheticTable) (*ResolvedBody, error) {
    if body == nil || len(body.Content) == 0 {
        return nil, nil
    }

    declared := make([]string, 0, len(body.Content))
    for _, mt := range body.Content {
        declared = append(declared, mt.ContentType)
        kind := mediaKind(mt.ContentType)
        if !supportedMediaTypes[kind] {
            continue
        }
        res := &ResolvedBody{ContentType: mt.ContentType}
        switch kind {
        case ContentTypeJSON:
            res.BodyType = resolveJSONBodyType(operationID, mt, table)
        case ContentTypeMultipartForm:
            res.FormFields = resolveFormFields(mt)
        }
        return res, nil
    }

    return nil, &UnsupportedMediaTypeError{OperationID: operationID, ContentTypes: declared}
}

// mediaKind lower-cases a content type and drops its parameters.
func mediaKind(contentType string) string {
    if mt, _, err := mime.ParseMediaType(contentType); err == nil {
        return mt
    }
    kind, _, _ := strings.Cut(contentType, ";")
    return strings.ToLower(strings.TrimSpace(kind))
}

func resolveJSONBodyType(operationID string, mt MediaType, table *SyntheticTable) string {
    schema := mt.Schema
    if schema == nil {
        return ""
    }
    if schema.Ref != "" {
        return ReferenceTypeName(schema.Ref)
    }
    if s := schema.Value; s != nil && s.Type == "array" && s.Items != nil && s.Items.Ref != "" {
        return ReferenceTypeName(s.Items.Ref)
    }
    if isInlineObject(schema) {
        name := table.Promote(operationID, RequestSuffix, schema, mt.PropertyOrder)
        return apl.Name(apl.PascalCase(name))
    }
    if s := schema.Value; s != nil && s.Type == "array" && isInlineObject(s.Items) {
        name := table.Promote(operationID, RequestItemSuffix, s.Items, mt.PropertyOrder)
        return apl.Name(apl.PascalCase(name))
    }
    return ""
}

func resolveFormFields(mt MediaType) []FormField {
    if mt.Schema == nil || mt.Schema.Value == nil {
        return nil
    }
    s := mt.Schema.Value
    if len(s.Properties) == 0 {
        return nil
    }
    required := stringSet(s.Required)
    fields := make([]FormField, 0, len(s.Properties))
    for _, key := range orderedKeys(s.Properties, mt.PropertyOrder) {
        prop := s.Properties[key]
        f := FormField{
            APIName:     key,
            Name:        apl.Name(apl.CamelCase(key)),
            Required:    required[key],
            ContentType: mt.Encoding[key],
        }
        if prop != nil && prop.Value != nil {
            f.Description = strings.TrimSpace(prop.Value.Description)
            f.IsArray = prop.Value.Type == "array"
            f.IsBinary = prop.Value.Format == "binary"
        }
        if f.IsBinary {
            f.Type = "binary"
        } else {
            f.Type = MapType(prop)
        }
        fields = append(fields, f)
    }
    return fields
}

// newMediaTypes converts kin-openapi content into declaration-ordered media
// types. prefix locates the content map in the raw document.
func newMediaTypes(doc *Document, content openapi3.Content, prefix ...string) []MediaType {
    keys := orderedKeys(content, doc.KeyOrder(prefix...))
    out := make([]MediaType, 0, len(keys))
    for _, ct := range keys {
        mt := content[ct]
        if mt == nil {
            continue
        }
        m := MediaType{ContentType: ct, Schema: mt.Schema}
        if len(mt.Encoding) > 0 {
            m.Encoding = make(map[string]string, len(mt.Encoding))
            for name, enc := range mt.Encoding {
                if enc != nil && enc.ContentType != "" {
                    m.Encoding[name] = enc.ContentType
                }
            }
        }
        schemaPath := append(append([]string(nil), prefix...), ct, "schema")
        if mt.Schema != nil && mt.Schema.Ref == "" && mt.Schema.Value != nil {
            if mt.Schema.Value.Type == "array" {
                m.PropertyOrder = doc.KeyOrder(append(schemaPath, "items", "properties")...)
            } else {
                m.PropertyOrder = doc.KeyOrder(append(schemaPath, "properties")...)
            }
        }
        out = append(out, m)
    }
    return out
}

func stringSet(items []string) map[string]bool {
    set := make(map[string]bool, len(items))
    for _, s := range items {
        set[s] = true
    }
    return set
}
