package bands

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/esg-scorer/internal/metric"
)

// GlobalKey is the document key holding global bands.
const GlobalKey = "global"

// Metadata describes where a Context came from. It is reported for audit
// and never used in scoring math.
type Metadata struct {
	Source      string `json:"source"`
	Seed        *int64 `json:"seed,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`
	Version     string `json:"version,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	Industries  int    `json:"industries"`
}

// Context holds the bands for one dataset. It is immutable once built and
// safe for concurrent use. A nil *Context answers every lookup with
// Fallback.
type Context struct {
	global   map[metric.Metric]Band
	industry map[string]map[metric.Metric]Band
	meta     Metadata
}

// IndustryKey normalizes an industry name for lookups. A Caser holds state,
// so one is built per call.
func IndustryKey(industry string) string {
	return cases.Fold().String(strings.TrimSpace(industry))
}

// Band returns the band for m. The industry band is used when useIndustry
// is set and the industry has observations for m; otherwise the global
// band; otherwise Fallback.
func (c *Context) Band(m metric.Metric, industry string, useIndustry bool) Band {
	if c == nil {
		return Fallback
	}
	if useIndustry {
		if b, ok := c.industry[IndustryKey(industry)][m]; ok {
			return b
		}
	}
	if b, ok := c.global[m]; ok {
		return b
	}
	return Fallback
}

// Average returns the imputation average for m within industry, falling
// back to the global average. The bool is false when neither scope has
// data and the Fallback average is returned.
func (c *Context) Average(m metric.Metric, industry string) (float64, bool) {
	if c == nil {
		return Fallback.Avg, false
	}
	if b, ok := c.industry[IndustryKey(industry)][m]; ok {
		return b.Avg, true
	}
	if b, ok := c.global[m]; ok {
		return b.Avg, true
	}
	return Fallback.Avg, false
}

// Metadata returns the dataset metadata.
func (c *Context) Metadata() Metadata {
	if c == nil {
		return Metadata{Source: "fallback"}
	}
	return c.meta
}

// Industries returns the known industry keys in sorted order.
func (c *Context) Industries() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.industry))
	for k := range c.industry {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Document renders the context as a precomputed bands document.
func (c *Context) Document() Document {
	doc := Document{Bands: make(map[string]map[string]Band)}
	if c == nil {
		return doc
	}
	doc.Seed = c.meta.Seed
	doc.GeneratedAt = c.meta.GeneratedAt
	doc.Version = c.meta.Version
	doc.Bands[GlobalKey] = toNamed(c.global)
	for ind, bands := range c.industry {
		doc.Bands[ind] = toNamed(bands)
	}
	return doc
}

func toNamed(in map[metric.Metric]Band) map[string]Band {
	out := make(map[string]Band, len(in))
	for m, b := range in {
		out[string(m)] = b
	}
	return out
}
