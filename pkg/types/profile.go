package types

// Unknown marks a technology signal that could not be determined.
const Unknown = "Unknown"

// Missing marks an absent security header.
const Missing = "Missing"

// OpenPort is a TCP port that accepted a connection.
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
	State   string `json:"state"`
}

// PathKind classifies a discovered path.
type PathKind string

const (
	PathScript    PathKind = "script"
	PathConfig    PathKind = "config"
	PathAdmin     PathKind = "admin"
	PathAPI       PathKind = "api"
	PathSensitive PathKind = "sensitive"
	PathProtected PathKind = "protected"
	PathDirectory PathKind = "directory"
)

// DiscoveredPath is a wordlist path that answered with an accepted status.
type DiscoveredPath struct {
	Path   string   `json:"path"`
	URL    string   `json:"url"`
	Status int      `json:"status"`
	Size   int64    `json:"size"`
	Kind   PathKind `json:"kind"`
}

// CookieAttributes are the security attributes of a response cookie.
type CookieAttributes struct {
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httponly"`
	SameSite string `json:"samesite"`
}

// TechStack holds the technology signals derived by fingerprinting.
type TechStack struct {
	Server          string                      `json:"server"`
	Backend         string                      `json:"backend"`
	Database        string                      `json:"database"`
	Frontend        string                      `json:"frontend"`
	CMS             string                      `json:"cms"`
	Languages       []string                    `json:"languages"`
	Frameworks      []string                    `json:"frameworks"`
	SecurityHeaders map[string]string           `json:"security_headers"`
	Cookies         map[string]CookieAttributes `json:"cookies"`
}

// DefaultTechStack is the profile reported when fingerprinting fails.
func DefaultTechStack() TechStack {
	return TechStack{
		Server:          Unknown,
		Backend:         Unknown,
		Database:        Unknown,
		Frontend:        Unknown,
		CMS:             Unknown,
		Languages:       []string{Unknown},
		Frameworks:      []string{},
		SecurityHeaders: map[string]string{},
		Cookies:         map[string]CookieAttributes{},
	}
}

// Profile is the merged attack surface of one target. Each field is owned by
// exactly one reconnaissance phase.
type Profile struct {
	OpenPorts    []OpenPort       `json:"open_ports"`
	Subdomains   []string         `json:"subdomains"`
	Paths        []DiscoveredPath `json:"paths"`
	URLs         []string         `json:"urls"`
	Technologies TechStack        `json:"technologies"`
}

// EmptyProfile returns a profile with every field at its default.
func EmptyProfile() Profile {
	return Profile{
		OpenPorts:    []OpenPort{},
		Subdomains:   []string{},
		Paths:        []DiscoveredPath{},
		URLs:         []string{},
		Technologies: DefaultTechStack(),
	}
}

// SurfaceSummary counts the discovered attack surface.
type SurfaceSummary struct {
	TotalEndpoints  int `json:"total_endpoints"`
	TotalSubdomains int `json:"total_subdomains"`
	TotalOpenPorts  int `json:"total_open_ports"`
}

// Summary counts crawled URLs plus discovered paths as endpoints.
func (p Profile) Summary() SurfaceSummary {
	return SurfaceSummary{
		TotalEndpoints:  len(p.URLs) + len(p.Paths),
		TotalSubdomains: len(p.Subdomains),
		TotalOpenPorts:  len(p.OpenPorts),
	}
}
