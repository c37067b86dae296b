package spec

import (
    "context"
    "fmt"
    "regexp"
    "strconv"
    "strings"
    "time"

    "github.com/mark3labs/openapi2dyalog/internal/apl"
)

// BuildOption configures how the ServiceModel is built from a Document.
type BuildOption func(*buildConfig)

type buildConfig struct {
    includeTags map[string]struct{}
    excludeTags map[string]struct{}
    methods     map[HttpMethod]struct{}
    pathRes     []*regexp.Regexp
    namespace   string
    now         func() time.Time
}

func newBuildConfig(opts []BuildOption) *buildConfig {
    cfg := &buildConfig{now: time.Now}
    for _, opt := range opts {
        opt(cfg)
    }
    return cfg
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        c.includeTags = addTags(c.includeTags, tags)
    }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        c.excludeTags = addTags(c.excludeTags, tags)
    }
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
    return func(c *buildConfig) {
        if len(methods) == 0 {
            return
        }
        if c.methods == nil {
            c.methods = make(map[HttpMethod]struct{}, len(methods))
        }
        for _, m := range methods {
            c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
        }
    }
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) BuildOption {
    return func(c *buildConfig) {
        for _, p := range patterns {
            p = strings.TrimSpace(p)
            if p == "" {
                continue
            }
            re, err := regexp.Compile(p)
            if err != nil {
                re = regexp.MustCompile("a^$")
            }
            c.pathRes = append(c.pathRes, re)
        }
    }
}

// WithNamespace sets the namespace exposed to document-level templates.
func WithNamespace(ns string) BuildOption {
    return func(c *buildConfig) { c.namespace = strings.TrimSpace(ns) }
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) BuildOption {
    return func(c *buildConfig) {
        if now != nil {
            c.now = now
        }
    }
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
    for _, t := range tags {
        t = strings.TrimSpace(t)
        if t == "" {
            continue
        }
        if set == nil {
            set = make(map[string]struct{}, len(tags))
        }
        set[t] = struct{}{}
    }
    return set
}

func (c *buildConfig) allow(ref OperationRef) bool {
    if len(c.methods) > 0 {
        if _, ok := c.methods[ref.Method]; !ok {
            return false
        }
    }
    if len(c.pathRes) > 0 {
        matched := false
        for _, re := range c.pathRes {
            if re.MatchString(ref.Path) {
                matched = true
                break
            }
        }
        if !matched {
            return false
        }
    }
    var tags []string
    if ref.Operation != nil {
        tags = trimmedTags(ref.Operation.Tags)
    }
    return allowByTags(tags, c)
}

// OperationError records an operation that could not be compiled. The rest
// of the document is still generated.
type OperationError struct {
    Tag         string
    OperationID string
    Method      HttpMethod
    Path        string
    Err         error
}

func (e OperationError) Error() string {
    return fmt.Sprintf("%s %s (%s): %v", strings.ToUpper(string(e.Method)), e.Path, e.OperationID, e.Err)
}

func (e OperationError) Unwrap() error { return e.Err }

// BuildServiceModel compiles doc into the intermediate representation:
// tag groups of operation contexts, model contexts for component schemas
// and promoted inline schemas, and the document context. Operations whose
// request body cannot be resolved are reported in Failures and skipped.
func BuildServiceModel(ctx context.Context, doc *Document, opts ...BuildOption) (*ServiceModel, error) {
    if doc == nil || doc.T == nil {
        return nil, fmt.Errorf("nil document")
    }
    cfg := newBuildConfig(opts)

    sm := &ServiceModel{Servers: servers(doc.T)}
    if doc.T.Info != nil {
        sm.Title = safeStr(doc.T.Info.Title)
        sm.Version = safeStr(doc.T.Info.Version)
        sm.Description = safeStr(doc.T.Info.Description)
    }

    table := NewSyntheticTable()
    var componentNames []string
    if doc.T.Components != nil {
        componentNames = orderedKeys(doc.T.Components.Schemas, doc.KeyOrder("components", "schemas"))
    }
    for _, name := range componentNames {
        table.Reserve(apl.PascalCase(name))
    }

    tagSeen := make(map[string]bool)
    dirs := make(map[string]bool)
    for _, g := range GroupOperations(doc, opts...) {
        // Tags differing only in case or punctuation share a sanitized name.
        group := TagGroup{Tag: g.Tag, Dir: uniqueName(apl.Name(apl.CamelCase(g.Tag)), dirs)}
        used := make(map[string]bool, len(g.Operations))
        for _, ref := range g.Operations {
            if err := ctx.Err(); err != nil {
                return nil, err
            }
            for _, t := range trimmedTags(ref.Operation.Tags) {
                if !tagSeen[t] {
                    tagSeen[t] = true
                    sm.Tags = append(sm.Tags, t)
                }
            }
            id := uniqueName(NormalizeOperationID(RawOperationID(ref)), used)
            oc, err := NewOperationContext(doc, ref, id, table)
            if err != nil {
                sm.Failures = append(sm.Failures, OperationError{
                    Tag:         g.Tag,
                    OperationID: id,
                    Method:      ref.Method,
                    Path:        ref.Path,
                    Err:         err,
                })
                continue
            }
            oc.TagDir = group.Dir
            group.Operations = append(group.Operations, oc)
        }
        if len(group.Operations) > 0 {
            sm.Groups = append(sm.Groups, group)
        }
    }

    for _, name := range componentNames {
        ref := doc.T.Components.Schemas[name]
        if ref == nil {
            continue
        }
        order := doc.KeyOrder("components", "schemas", name, "properties")
        sm.Models = append(sm.Models, NewModelContext(name, ref, order, false))
    }
    for _, m := range table.Drain() {
        mc := NewModelContext(m.Name, m.Schema, m.PropertyOrder, true)
        if mc.Description == "" {
            mc.Description = "Request body of " + m.OperationID
        }
        sm.Models = append(sm.Models, mc)
    }

    classes := make(map[string]bool, len(sm.Models))
    for _, mc := range sm.Models {
        mc.ClassName = uniqueName(mc.ClassName, classes)
    }

    sm.Document = NewDocumentContext(doc, sm.Groups, cfg.namespace, cfg.now().UTC())
    return sm, nil
}

// uniqueName returns base, or base followed by the smallest counter from 2
// that is not yet in used, and records the result.
func uniqueName(base string, used map[string]bool) string {
    name := base
    for n := 2; used[name]; n++ {
        name = base + strconv.Itoa(n)
    }
    used[name] = true
    return name
}

func allowByTags(tags []string, cfg *buildConfig) bool {
    hasInclude := len(cfg.includeTags) > 0
    if hasInclude {
        ok := false
        for _, t := range tags {
            if _, yes := cfg.includeTags[t]; yes {
                ok = true
                break
            }
        }
        if !ok {
            return false
        }
    }
    if len(cfg.excludeTags) > 0 {
        for _, t := range tags {
            if _, blocked := cfg.excludeTags[t]; blocked {
                return false
            }
        }
    }
    return true
}

func paramKey(in, name string) string { return in + ":" + name }

func safeStr(s string) string { return strings.TrimSpace(s) }
