package spec

import (
    "strings"

    "gopkg.in/yaml.v3"
)

const formDataMedia = "multipart/form-data"

var v2Methods = map[string]bool{
    "get": true, "post": true, "put": true, "delete": true,
    "patch": true, "options": true, "head": true,
}

// preprocessV2ForCompatibility rewrites Swagger 2.0 operations that
// openapi2conv rejects:
//   - several `in: body` parameters are merged into one object body whose
//     properties are the original parameters;
//   - body parameters mixed with formData parameters become formData
//     fields, and the operation consumes multipart/form-data.
//
// It returns the rewritten bytes and whether anything changed. On error the
// input is returned unchanged.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
    var doc map[string]any
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return data, false, err
    }
    paths, ok := doc["paths"].(map[string]any)
    if !ok || len(paths) == 0 {
        return data, false, nil
    }

    modified := false
    for _, item := range paths {
        pi, ok := item.(map[string]any)
        if !ok {
            continue
        }
        for method, raw := range pi {
            if !v2Methods[strings.ToLower(method)] {
                continue
            }
            if op, ok := raw.(map[string]any); ok && rewriteV2Operation(op) {
                modified = true
            }
        }
    }
    if !modified {
        return data, false, nil
    }

    out, err := yaml.Marshal(doc)
    if err != nil {
        return data, false, err
    }
    return out, true, nil
}

// rewriteV2Operation fixes the parameters of one operation in place.
func rewriteV2Operation(op map[string]any) bool {
    params, ok := op["parameters"].([]any)
    if !ok || len(params) == 0 {
        return false
    }
    bodies, hasForm := 0, false
    for _, p := range params {
        switch paramIn(p) {
        case "body":
            bodies++
        case "formdata":
            hasForm = true
        }
    }
    switch {
    case bodies > 0 && hasForm:
        op["parameters"] = bodyParamsToFormData(params)
        consumes, _ := op["consumes"].([]any)
        if !containsString(consumes, formDataMedia) {
            op["consumes"] = append(consumes, formDataMedia)
        }
        return true
    case bodies > 1:
        op["parameters"] = mergeBodyParams(params)
        return true
    }
    return false
}

func paramIn(p any) string {
    pm, _ := p.(map[string]any)
    return strings.ToLower(asString(pm["in"]))
}

// mergeBodyParams replaces every body parameter with a single leading body
// parameter named "body".
func mergeBodyParams(params []any) []any {
    props := map[string]any{}
    var required []any
    rest := make([]any, 0, len(params))
    for _, p := range params {
        pm, _ := p.(map[string]any)
        if pm == nil {
            continue
        }
        if paramIn(pm) != "body" {
            rest = append(rest, p)
            continue
        }
        name := paramName(pm)
        schema := extractSchemaFromParam(pm)
        if schema == nil {
            schema = map[string]any{"type": "string"}
        }
        props[name] = schema
        if req, _ := pm["required"].(bool); req {
            required = append(required, name)
        }
    }
    schema := map[string]any{"type": "object", "properties": props}
    if len(required) > 0 {
        schema["required"] = required
    }
    merged := map[string]any{"in": "body", "name": "body", "schema": schema}
    return append([]any{merged}, rest...)
}

func bodyParamsToFormData(params []any) []any {
    out := make([]any, 0, len(params))
    for _, p := range params {
        pm, _ := p.(map[string]any)
        if pm == nil {
            continue
        }
        if paramIn(pm) == "body" {
            out = append(out, formDataFromBodyParam(pm))
            continue
        }
        out = append(out, pm)
    }
    return out
}

func paramName(pm map[string]any) string {
    if name := asString(pm["name"]); name != "" {
        return name
    }
    return "field"
}

func asString(v any) string {
    s, _ := v.(string)
    return s
}

func containsString(list []any, want string) bool {
    for _, v := range list {
        if s, ok := v.(string); ok && s == want {
            return true
        }
    }
    return false
}

// extractSchemaFromParam returns the parameter's schema, or one built from
// its type, items and format.
func extractSchemaFromParam(pm map[string]any) map[string]any {
    if sch, ok := pm["schema"].(map[string]any); ok {
        return sch
    }
    t := asString(pm["type"])
    if t == "" {
        return nil
    }
    m := map[string]any{"type": t}
    if it, ok := pm["items"].(map[string]any); ok {
        m["items"] = it
    }
    if f := asString(pm["format"]); f != "" {
        m["format"] = f
    }
    return m
}

// formDataFromBodyParam converts a body parameter to a formData field.
// Referenced objects cannot be form fields and degrade to strings.
func formDataFromBodyParam(pm map[string]any) map[string]any {
    out := map[string]any{"in": "formData", "name": paramName(pm)}
    if desc := asString(pm["description"]); desc != "" {
        out["description"] = desc
    }
    if req, ok := pm["required"].(bool); ok {
        out["required"] = req
    }

    src := pm
    if sch, ok := pm["schema"].(map[string]any); ok {
        src = sch
    }
    typ := asString(src["type"])
    if typ == "" {
        typ = "string"
    }
    out["type"] = typ
    if it, ok := src["items"].(map[string]any); ok {
        out["items"] = it
    }
    if f := asString(src["format"]); f != "" {
        out["format"] = f
    }
    return out
}
