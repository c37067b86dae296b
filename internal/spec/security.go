package spec

import (
    "sort"

    "github.com/getkin/kin-openapi/openapi3"
)

// EffectiveSecurity applies the inheritance rule: a nil operation-level
// declaration inherits the document defaults, an explicit empty list
// disables security for the operation.
func EffectiveSecurity(docSecurity openapi3.SecurityRequirements, opSecurity *openapi3.SecurityRequirements) []SecurityRequirement {
    reqs := docSecurity
    if opSecurity != nil {
        reqs = *opSecurity
    }
    if len(reqs) == 0 {
        return nil
    }
    out := make([]SecurityRequirement, 0, len(reqs))
    for _, req := range reqs {
        names := make([]string, 0, len(req))
        for name := range req {
            names = append(names, name)
        }
        sort.Strings(names)
        r := SecurityRequirement{Schemes: make([]SecurityScheme, 0, len(names))}
        for _, name := range names {
            r.Schemes = append(r.Schemes, SecurityScheme{
                Name:   name,
                Scopes: append([]string(nil), req[name]...),
            })
        }
        out = append(out, r)
    }
    return out
}

// SecuritySchemeNames returns every distinct scheme name referenced by
// reqs, in first appearance order.
func SecuritySchemeNames(reqs []SecurityRequirement) []string {
    var out []string
    seen := make(map[string]bool)
    for _, r := range reqs {
        for _, s := range r.Schemes {
            if s.Name == "" || seen[s.Name] {
                continue
            }
            seen[s.Name] = true
            out = append(out, s.Name)
        }
    }
    return out
}
