package spec

import (
    "time"

    "github.com/getkin/kin-openapi/openapi3"
)

// Intermediate representation handed from the compiler to the emitter.

type HttpMethod string

const (
    GET     HttpMethod = "get"
    PUT     HttpMethod = "put"
    POST    HttpMethod = "post"
    DELETE  HttpMethod = "delete"
    OPTIONS HttpMethod = "options"
    HEAD    HttpMethod = "head"
    PATCH   HttpMethod = "patch"
    TRACE   HttpMethod = "trace"
)

// DefaultTag groups operations that declare no tag.
const DefaultTag = "default"

// Supported request body media types.
const (
    ContentTypeJSON          = "application/json"
    ContentTypeOctetStream   = "application/octet-stream"
    ContentTypeMultipartForm = "multipart/form-data"
)

// ServiceModel is the result of one compilation run.
type ServiceModel struct {
    Title       string
    Version     string
    Description string
    Servers     []Server
    Tags        []string // distinct declared tags, first appearance order
    Groups      []TagGroup
    Models      []*ModelContext // components first, then synthetic models
    Document    *DocumentContext
    Failures    []OperationError
}

type Server struct {
    URL         string
    Description string
}

// TagGroup is the ordered set of operations filed under one tag.
type TagGroup struct {
    Tag        string
    Dir        string // sanitized directory name
    Operations []*OperationContext
}

// OperationRef points at one (path, method) pair of the source document.
type OperationRef struct {
    Path      string
    Method    HttpMethod
    Operation *openapi3.Operation
    PathItem  *openapi3.PathItem
}

type Operation struct {
    RawID       string // operationId, or synthesized from method and path
    ID          string // legal APL name, unique within its tag group
    Method      HttpMethod
    Path        string
    PathExpr    string
    Summary     string
    Description string
    Tags        []string
    Parameters  []Parameter
    RequestBody *RequestBody
    Responses   []Response
    Deprecated  bool
    Security    []SecurityRequirement
}

type Parameter struct {
    Name        string // name as declared
    APLName     string
    In          string // path|query|header|cookie
    Required    bool
    Description string
    Type        string
}

type RequestBody struct {
    Required    bool
    Description string
    Content     []MediaType // declaration order
}

type MediaType struct {
    ContentType   string
    Schema        *openapi3.SchemaRef
    Encoding      map[string]string // property -> content type
    PropertyOrder []string          // declaration order of inline schema properties
}

type Response struct {
    Status       string
    Description  string
    ContentTypes []string
    Type         string // mapped type of the JSON payload, if any
}

// SecurityRequirement is one alternative; all of its schemes apply together.
type SecurityRequirement struct {
    Schemes []SecurityScheme
}

type SecurityScheme struct {
    Name   string
    Scopes []string
}

type FormField struct {
    APIName     string
    Name        string
    Type        string
    Required    bool
    Description string
    IsArray     bool
    IsBinary    bool
    ContentType string
}

// ContextKind discriminates the Context variants.
type ContextKind int

const (
    DocumentKind ContextKind = iota + 1
    OperationKind
    ModelKind
)

func (k ContextKind) String() string {
    switch k {
    case DocumentKind:
        return "document"
    case OperationKind:
        return "operation"
    case ModelKind:
        return "model"
    }
    return "unknown"
}

// Context is the value handed to a template. Exactly one of Document,
// Operation or Model is set, as named by Kind.
type Context struct {
    Kind      ContextKind
    Document  *DocumentContext
    Operation *OperationContext
    Model     *ModelContext
    Custom    map[string]any
}

type DocumentContext struct {
    Title       string
    Version     string
    Description string
    BaseURL     string
    Servers     []Server
    Schemas     openapi3.Schemas
    Paths       openapi3.Paths
    PathOrder   []string
    Groups      []TagGroup
    GeneratedAt time.Time
    Namespace   string
}

type OperationContext struct {
    *Operation
    TagDir              string
    RequestContentType  string
    RequestBodyType     string
    FormFields          []FormField
    SecuritySchemeNames []string
    HasSecurity         bool
}

type ModelContext struct {
    Name        string // name as declared or synthesized
    ClassName   string
    Description string
    Properties  []ModelProperty
    Synthetic   bool
}

type ModelProperty struct {
    APIName       string
    Name          string
    Type          string
    Required      bool
    Description   string
    IsReference   bool
    ReferenceType string
    IsArray       bool
}
