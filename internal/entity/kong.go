package entity

// Generic is an untyped entity, used where the collection shape is not known.
type Generic = map[string]any

// Ref is a foreign-key reference to another entity.
type Ref struct {
	ID string `json:"id"`
}

// Collection names understood by the admin API.
const (
	Services     = "services"
	Routes       = "routes"
	Consumers    = "consumers"
	Plugins      = "plugins"
	Upstreams    = "upstreams"
	Targets      = "targets"
	Certificates = "certificates"
	SNIs         = "snis"
)

// Collections lists the well-known collection names in menu order.
var Collections = []string{Services, Routes, Consumers, Plugins, Upstreams, Targets, Certificates, SNIs}

type Service struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name,omitempty"`
	Protocol          string   `json:"protocol,omitempty"`
	Host              string   `json:"host"`
	Port              int      `json:"port,omitempty"`
	Path              string   `json:"path,omitempty"`
	Retries           *int     `json:"retries,omitempty"`
	ConnectTimeout    int      `json:"connect_timeout,omitempty"`
	WriteTimeout      int      `json:"write_timeout,omitempty"`
	ReadTimeout       int      `json:"read_timeout,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ClientCertificate *Ref     `json:"client_certificate,omitempty"`
	TLSVerify         *bool    `json:"tls_verify,omitempty"`
	TLSVerifyDepth    *int     `json:"tls_verify_depth,omitempty"`
	CACertificates    []string `json:"ca_certificates,omitempty"`
	CreatedAt         int64    `json:"created_at,omitempty"`
	UpdatedAt         int64    `json:"updated_at,omitempty"`
}

type Route struct {
	ID                      string              `json:"id,omitempty"`
	Name                    string              `json:"name,omitempty"`
	Protocols               []string            `json:"protocols,omitempty"`
	Methods                 []string            `json:"methods,omitempty"`
	Hosts                   []string            `json:"hosts,omitempty"`
	Paths                   []string            `json:"paths,omitempty"`
	Headers                 map[string][]string `json:"headers,omitempty"`
	HTTPSRedirectStatusCode int                 `json:"https_redirect_status_code,omitempty"`
	RegexPriority           int                 `json:"regex_priority,omitempty"`
	StripPath               *bool               `json:"strip_path,omitempty"`
	PreserveHost            *bool               `json:"preserve_host,omitempty"`
	Tags                    []string            `json:"tags,omitempty"`
	Service                 *Ref                `json:"service,omitempty"`
	CreatedAt               int64               `json:"created_at,omitempty"`
	UpdatedAt               int64               `json:"updated_at,omitempty"`
}

type Consumer struct {
	ID        string   `json:"id,omitempty"`
	Username  string   `json:"username,omitempty"`
	CustomID  string   `json:"custom_id,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at,omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty"`
}

type Plugin struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config,omitempty"`
	Protocols []string       `json:"protocols,omitempty"`
	Enabled   *bool          `json:"enabled,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Consumer  *Ref           `json:"consumer,omitempty"`
	Service   *Ref           `json:"service,omitempty"`
	Route     *Ref           `json:"route,omitempty"`
	CreatedAt int64          `json:"created_at,omitempty"`
	UpdatedAt int64          `json:"updated_at,omitempty"`
}

type Upstream struct {
	ID               string         `json:"id,omitempty"`
	Name             string         `json:"name"`
	Algorithm        string         `json:"algorithm,omitempty"`
	HashOn           string         `json:"hash_on,omitempty"`
	HashFallback     string         `json:"hash_fallback,omitempty"`
	HashOnCookiePath string         `json:"hash_on_cookie_path,omitempty"`
	Healthchecks     map[string]any `json:"healthchecks,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	CreatedAt        int64          `json:"created_at,omitempty"`
	UpdatedAt        int64          `json:"updated_at,omitempty"`
}

type Target struct {
	ID        string   `json:"id,omitempty"`
	Target    string   `json:"target"`
	Weight    *int     `json:"weight,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Upstream  *Ref     `json:"upstream,omitempty"`
	CreatedAt float64  `json:"created_at,omitempty"`
	UpdatedAt float64  `json:"updated_at,omitempty"`
}

type Certificate struct {
	ID        string   `json:"id,omitempty"`
	Cert      string   `json:"cert"`
	Key       string   `json:"key"`
	CertAlt   string   `json:"cert_alt,omitempty"`
	KeyAlt    string   `json:"key_alt,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at,omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty"`
}

type SNI struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Certificate *Ref     `json:"certificate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"created_at,omitempty"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`
}

// DisplayName picks the most readable identifier of a generic entity.
func DisplayName(e Generic) string {
	for _, key := range []string{"name", "username", "target", "custom_id", "id"} {
		if v, ok := e[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
