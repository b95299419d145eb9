package types

import "time"

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	StatusPending   ScanStatus = "PENDING"
	StatusRunning   ScanStatus = "RUNNING"
	StatusCompleted ScanStatus = "COMPLETED"
	StatusFailed    ScanStatus = "FAILED"
)

// Terminal reports whether no further transitions can happen.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ScanRun is one end-to-end execution against a target.
type ScanRun struct {
	ID          string     `json:"id"`
	Target      Target     `json:"target"`
	Status      ScanStatus `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Profile     Profile    `json:"profile"`
	Probes      []string   `json:"probes,omitempty"`
	Findings    []Finding  `json:"findings"`
	Error       string     `json:"error,omitempty"`
	Cancelled   bool       `json:"cancelled,omitempty"`
}

// RunSummary is the result summary persisted with a finished run.
type RunSummary struct {
	AttackSurface        SurfaceSummary   `json:"attack_surface"`
	ScannersRun          int              `json:"scanners_run"`
	TotalVulnerabilities int              `json:"total_vulnerabilities"`
	BySeverity           map[Severity]int `json:"by_severity"`
}

// Summary aggregates the run's profile and findings.
func (r ScanRun) Summary() RunSummary {
	return RunSummary{
		AttackSurface:        r.Profile.Summary(),
		ScannersRun:          len(r.Probes),
		TotalVulnerabilities: len(r.Findings),
		BySeverity:           CountBySeverity(r.Findings),
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r ScanRun) Clone() ScanRun {
	c := r
	c.Probes = append([]string(nil), r.Probes...)
	c.Findings = append([]Finding(nil), r.Findings...)
	if c.Findings == nil {
		c.Findings = []Finding{}
	}
	c.Profile.OpenPorts = append([]OpenPort(nil), r.Profile.OpenPorts...)
	c.Profile.Subdomains = append([]string(nil), r.Profile.Subdomains...)
	c.Profile.Paths = append([]DiscoveredPath(nil), r.Profile.Paths...)
	c.Profile.URLs = append([]string(nil), r.Profile.URLs...)
	c.Profile.Technologies.Languages = append([]string(nil), r.Profile.Technologies.Languages...)
	c.Profile.Technologies.Frameworks = append([]string(nil), r.Profile.Technologies.Frameworks...)
	if r.Profile.Technologies.SecurityHeaders != nil {
		c.Profile.Technologies.SecurityHeaders = make(map[string]string, len(r.Profile.Technologies.SecurityHeaders))
		for k, v := range r.Profile.Technologies.SecurityHeaders {
			c.Profile.Technologies.SecurityHeaders[k] = v
		}
	}
	if r.Profile.Technologies.Cookies != nil {
		c.Profile.Technologies.Cookies = make(map[string]CookieAttributes, len(r.Profile.Technologies.Cookies))
		for k, v := range r.Profile.Technologies.Cookies {
			c.Profile.Technologies.Cookies[k] = v
		}
	}
	return c
}

// Event stage names published on a scan's progress topic.
const (
	StageConnected     = "connected"
	StageInitializing  = "Initializing"
	StagePortScan      = "Port Scanning"
	StageTechDetection = "Tech Detection"
	StageSubdomains    = "Subdomain Enum"
	StageDirectories   = "Directory Discovery"
	StageCrawl         = "Web Crawling"
	StageScanning      = "Scanning"
	StagePayload       = "Payload"
	StageVulnFound     = "Vulnerability Found"
	StageError         = "Error"
	StageReporting     = "Reporting"
	StageCompleted     = "Completed"
	StageFailed        = "Failed"
)

// Event is an ephemeral progress notification. It is never persisted.
type Event struct {
	ScanID   string         `json:"scan_id"`
	Stage    string         `json:"stage"`
	Log      string         `json:"log,omitempty"`
	Progress int            `json:"progress"`
	Data     map[string]any `json:"data,omitempty"`
	Time     time.Time      `json:"time"`
}

// Terminal reports whether this is the last event of a run.
func (e Event) Terminal() bool {
	return e.Stage == StageCompleted || e.Stage == StageFailed
}
