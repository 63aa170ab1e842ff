package collection

import "github.com/google/uuid"

// Collection represents a collection of stored requests.
type Collection struct {
	Name      string            `yaml:"name"`
	Version   string            `yaml:"version"`
	Auth      *Auth             `yaml:"auth,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
	Items     []Item            `yaml:"items"`
}

// Item is a union type: either a Folder or a Request.
type Item struct {
	Folder  *Folder  `yaml:"folder,omitempty"`
	Request *Request `yaml:"request,omitempty"`
}

// Folder groups related requests.
type Folder struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items,omitempty"`
}

// Request describes a stored request. The execution core treats it as
// read-only input; only the editor mutates it.
type Request struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Method string `yaml:"method"`
	URL    string `yaml:"url"`

	Params    []KVPair `yaml:"params,omitempty"`
	Headers   []KVPair `yaml:"headers,omitempty"`
	PathVars  []KVPair `yaml:"path_vars,omitempty"`
	Auth      *Auth    `yaml:"auth,omitempty"`
	Body      *Body    `yaml:"body,omitempty"`

	PreScript  string `yaml:"pre_script,omitempty"`
	PostScript string `yaml:"post_script,omitempty"`
}

// NewRequest creates a new request with defaults.
func NewRequest(name, method, url string) *Request {
	return &Request{
		ID:     uuid.New().String(),
		Name:   name,
		Method: method,
		URL:    url,
	}
}

// KVPair represents a key-value pair (header, param, path variable).
type KVPair struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled bool   `yaml:"enabled"`
}

// AuthType enumerates the supported auth kinds. The set is closed; the
// assembler matches it exhaustively.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apikey"
)

// Auth represents authentication configuration.
type Auth struct {
	Type   AuthType    `yaml:"type"`
	Basic  *BasicAuth  `yaml:"basic,omitempty"`
	Bearer *BearerAuth `yaml:"bearer,omitempty"`
	APIKey *APIKeyAuth `yaml:"apikey,omitempty"`
}

// BasicAuth holds basic auth credentials.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BearerAuth holds a bearer token.
type BearerAuth struct {
	Token string `yaml:"token"`
}

// APIKeyAuth holds an API key configuration.
type APIKeyAuth struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	In    string `yaml:"in"` // header, query
}

// BodyType enumerates the supported body kinds.
type BodyType string

const (
	BodyNone      BodyType = "none"
	BodyJSON      BodyType = "json"
	BodyXML       BodyType = "xml"
	BodyText      BodyType = "text"
	BodyForm      BodyType = "form"
	BodyMultipart BodyType = "multipart"
)

// Body represents a request body.
type Body struct {
	Type    BodyType `yaml:"type"`
	Content string   `yaml:"content"`
}

// FlatItem represents a flattened tree item for display and lookup.
type FlatItem struct {
	Request  *Request
	Folder   *Folder
	Depth    int
	IsFolder bool
	Path     string // "Collection/Folder/Request"
}

// FlattenItems flattens the tree for display and lookup.
func FlattenItems(items []Item, depth int, parentPath string) []FlatItem {
	var result []FlatItem
	for i := range items {
		item := &items[i]
		if item.Folder != nil {
			path := parentPath + "/" + item.Folder.Name
			result = append(result, FlatItem{
				Folder:   item.Folder,
				Depth:    depth,
				IsFolder: true,
				Path:     path,
			})
			result = append(result, FlattenItems(item.Folder.Items, depth+1, path)...)
		}
		if item.Request != nil {
			path := parentPath + "/" + item.Request.Name
			result = append(result, FlatItem{
				Request: item.Request,
				Depth:   depth,
				Path:    path,
			})
		}
	}
	return result
}
