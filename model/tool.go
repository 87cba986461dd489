package model

import "time"

// Tool is a monitored AI coding assistant. Tools are created lazily the first
// time a vulnerability references them and are never deleted while referenced.
type Tool struct {
	Key         string `json:"_key,omitempty"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Vendor      string `json:"vendor,omitempty"`
	Category    string `json:"category,omitempty"`

	// Keywords drive adapter-side relevance matching against advisory text
	// and CPE names.
	Keywords []string `json:"keywords,omitempty"`

	CurrentVersion string `json:"current_version,omitempty"`

	TotalVulnerabilities    int        `json:"total_vulnerabilities"`
	CriticalVulnerabilities int        `json:"critical_vulnerabilities"`
	LastVulnerabilityDate   *time.Time `json:"last_vulnerability_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ObjType string `json:"objtype"`
}

// NewTool creates a tool stub for lazy registration on first reference.
func NewTool(name string, now time.Time) *Tool {
	return &Tool{
		Name:        name,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
		ObjType:     "Tool",
	}
}
