package nvd

// Wire types for the NVD CVE API 2.0. Only the fields the pipeline consumes
// are mapped.

type response struct {
	ResultsPerPage  int    `json:"resultsPerPage"`
	StartIndex      int    `json:"startIndex"`
	TotalResults    int    `json:"totalResults"`
	Vulnerabilities []Item `json:"vulnerabilities"`
}

// Item is one entry of the `vulnerabilities` array.
type Item struct {
	CVE CVE `json:"cve"`
}

type CVE struct {
	ID             string          `json:"id"`
	Published      string          `json:"published"`
	LastModified   string          `json:"lastModified"`
	Descriptions   []LangString    `json:"descriptions"`
	Metrics        Metrics         `json:"metrics"`
	References     []Reference     `json:"references"`
	Weaknesses     []Weakness      `json:"weaknesses"`
	Configurations []Configuration `json:"configurations"`
}

type LangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type Metrics struct {
	CVSSMetricV31 []CVSSMetric `json:"cvssMetricV31"`
	CVSSMetricV30 []CVSSMetric `json:"cvssMetricV30"`
	CVSSMetricV2  []CVSSMetric `json:"cvssMetricV2"`
}

type CVSSMetric struct {
	CVSSData CVSSData `json:"cvssData"`
}

type CVSSData struct {
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
}

type Reference struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

type Weakness struct {
	Description []LangString `json:"description"`
}

type Configuration struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	CPEMatch []CPEMatch `json:"cpeMatch"`
}

type CPEMatch struct {
	Criteria string `json:"criteria"`
}

// Description returns the English description, falling back to the first one
// present.
func (c CVE) Description() string {
	for _, d := range c.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(c.Descriptions) > 0 {
		return c.Descriptions[0].Value
	}
	return ""
}

// PreferredCVSS returns the vector and base score of the newest CVSS metric
// available, v3.1 first, then v3.0, then v2.
func (c CVE) PreferredCVSS() (string, float64, bool) {
	for _, metrics := range [][]CVSSMetric{
		c.Metrics.CVSSMetricV31,
		c.Metrics.CVSSMetricV30,
		c.Metrics.CVSSMetricV2,
	} {
		if len(metrics) > 0 {
			return metrics[0].CVSSData.VectorString, metrics[0].CVSSData.BaseScore, true
		}
	}
	return "", 0, false
}

// CPECriteria flattens every CPE match criteria string in the configuration
// tree.
func (c CVE) CPECriteria() []string {
	var cpes []string
	for _, cfg := range c.Configurations {
		for _, node := range cfg.Nodes {
			for _, match := range node.CPEMatch {
				if match.Criteria != "" {
					cpes = append(cpes, match.Criteria)
				}
			}
		}
	}
	return cpes
}

// CWEIDs collects the CWE identifiers attached to the CVE.
func (c CVE) CWEIDs() []string {
	var ids []string
	for _, w := range c.Weaknesses {
		for _, d := range w.Description {
			if len(d.Value) > 4 && d.Value[:4] == "CWE-" {
				ids = append(ids, d.Value)
			}
		}
	}
	return ids
}
