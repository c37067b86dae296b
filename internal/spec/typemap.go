package spec

import (
    "strings"

    "github.com/getkin/kin-openapi/openapi3"
    "github.com/mark3labs/openapi2dyalog/internal/apl"
)

// AnyType is used for untyped schemas and references that cannot be named.
const AnyType = "any"

// MapType resolves a schema to the APL type name used in generated code.
// It is pure: inline objects map to "namespace" and are never registered.
func MapType(ref *openapi3.SchemaRef) string {
    if ref == nil {
        return AnyType
    }
    if ref.Ref != "" {
        if name := ReferenceTypeName(ref.Ref); name != "" {
            return name
        }
        return AnyType
    }
    s := ref.Value
    if s == nil {
        return AnyType
    }
    switch s.Type {
    case "string":
        return "str"
    case "integer":
        return "int"
    case "number":
        return "number"
    case "boolean":
        return "bool"
    case "object":
        return "namespace"
    case "array":
        if s.Items == nil {
            return "array"
        }
        return "array[" + MapType(s.Items) + "]"
    }
    return AnyType
}

// ReferenceTypeName returns the APL type name for a $ref, or "" when the
// reference has no usable component id.
func ReferenceTypeName(ref string) string {
    id := ComponentID(ref)
    if id == "" {
        return ""
    }
    return apl.Name(apl.CamelCase(id))
}

// ComponentID extracts the component name from a reference such as
// "#/components/schemas/Pet" or "models.yaml#/definitions/Pet".
func ComponentID(ref string) string {
    ref = strings.TrimSpace(ref)
    if i := strings.LastIndex(ref, "#"); i >= 0 {
        ref = ref[i+1:]
    }
    if i := strings.LastIndex(ref, "/"); i >= 0 {
        ref = ref[i+1:]
    }
    ref = strings.ReplaceAll(ref, "~1", "/")
    ref = strings.ReplaceAll(ref, "~0", "~")
    return ref
}

// isInlineObject reports whether s is an object schema with declared
// properties, the only shape promoted to a synthetic model.
func isInlineObject(ref *openapi3.SchemaRef) bool {
    if ref == nil || ref.Ref != "" || ref.Value == nil {
        return false
    }
    s := ref.Value
    return (s.Type == "object" || s.Type == "") && len(s.Properties) > 0
}
