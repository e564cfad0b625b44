package bands

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
)

// Document is a precomputed bands file: industry -> metric -> band, with
// optional generation metadata. The "global" industry key, when present,
// supplies the global bands.
type Document struct {
	Seed        *int64                     `json:"seed,omitempty" yaml:"seed,omitempty"`
	GeneratedAt string                     `json:"generatedAt,omitempty" yaml:"generatedAt,omitempty"`
	Version     string                     `json:"version,omitempty" yaml:"version,omitempty"`
	Bands       map[string]map[string]Band `json:"bands" yaml:"bands"`
}

// Build aggregates reference rows into per-industry and global bands.
// Rows go through metric.Derive so intensities are revenue-normalized the
// same way as during scoring.
func Build(rows []model.Supplier) *Context {
	global := make(map[metric.Metric]*accumulator)
	industry := make(map[string]map[metric.Metric]*accumulator)

	for _, row := range rows {
		set := metric.Derive(row.Fields, row.Revenue)
		key := IndustryKey(row.Industry)
		for m, v := range set.Values {
			acc(global, m).add(v)
			if key == "" {
				continue
			}
			if industry[key] == nil {
				industry[key] = make(map[metric.Metric]*accumulator)
			}
			acc(industry[key], m).add(v)
		}
	}

	c := &Context{
		global:   finish(global),
		industry: make(map[string]map[metric.Metric]Band, len(industry)),
	}
	for key, accs := range industry {
		c.industry[key] = finish(accs)
	}
	c.meta = Metadata{
		Source:     "reference",
		Rows:       len(rows),
		Industries: len(c.industry),
	}

	zap.L().Info("bands: built from reference rows",
		zap.Int("rows", len(rows)),
		zap.Int("industries", len(c.industry)),
		zap.Int("global_metrics", len(c.global)),
	)
	return c
}

// FromDocument builds a Context from a precomputed bands document. When the
// document has no "global" entry the global band for each metric is the
// envelope of its industry bands, averaged over industries.
func FromDocument(doc Document) (*Context, error) {
	var problems []string
	c := &Context{
		global:   make(map[metric.Metric]Band),
		industry: make(map[string]map[metric.Metric]Band),
	}

	var explicitGlobal map[string]Band
	for name, named := range doc.Bands {
		key := IndustryKey(name)
		if key == GlobalKey {
			explicitGlobal = named
			continue
		}
		if key == "" {
			problems = append(problems, "empty industry key")
			continue
		}
		parsed, errs := parseNamed(name, named)
		problems = append(problems, errs...)
		if len(parsed) > 0 {
			c.industry[key] = parsed
		}
	}

	if explicitGlobal != nil {
		parsed, errs := parseNamed(GlobalKey, explicitGlobal)
		problems = append(problems, errs...)
		c.global = parsed
	} else {
		c.global = envelope(c.industry)
	}

	if len(problems) > 0 {
		return nil, eris.Errorf("bands: invalid document: %s", strings.Join(problems, "; "))
	}

	c.meta = Metadata{
		Source:      "document",
		Seed:        doc.Seed,
		GeneratedAt: doc.GeneratedAt,
		Version:     doc.Version,
		Industries:  len(c.industry),
	}

	zap.L().Info("bands: loaded document",
		zap.String("version", doc.Version),
		zap.Int("industries", len(c.industry)),
	)
	return c, nil
}

// New picks the bands source. A document wins over reference rows.
func New(rows []model.Supplier, doc *Document) (*Context, error) {
	if doc != nil {
		return FromDocument(*doc)
	}
	return Build(rows), nil
}

func parseNamed(scope string, named map[string]Band) (map[metric.Metric]Band, []string) {
	var problems []string
	out := make(map[metric.Metric]Band, len(named))
	for name, b := range named {
		m, ok := metric.Parse(name)
		if !ok {
			zap.L().Warn("bands: skipping unknown metric",
				zap.String("scope", scope),
				zap.String("metric", name),
			)
			continue
		}
		if !b.Valid() {
			problems = append(problems, fmt.Sprintf("%s/%s has non-finite bounds", scope, name))
			continue
		}
		if b.Min > b.Max {
			problems = append(problems, fmt.Sprintf("%s/%s min %g > max %g", scope, name, b.Min, b.Max))
			continue
		}
		out[m] = b.Widen()
	}
	return out, problems
}

func envelope(industry map[string]map[metric.Metric]Band) map[metric.Metric]Band {
	accs := make(map[metric.Metric]*accumulator)
	sums := make(map[metric.Metric]float64)
	for _, bands := range industry {
		for m, b := range bands {
			a := acc(accs, m)
			a.add(b.Min)
			a.add(b.Max)
			sums[m] += b.Avg
		}
	}
	out := make(map[metric.Metric]Band, len(accs))
	for m, a := range accs {
		// two entries per industry
		out[m] = Band{Min: a.min, Max: a.max, Avg: sums[m] / float64(a.n/2)}.Widen()
	}
	return out
}

func acc(accs map[metric.Metric]*accumulator, m metric.Metric) *accumulator {
	a, ok := accs[m]
	if !ok {
		a = &accumulator{}
		accs[m] = a
	}
	return a
}

func finish(accs map[metric.Metric]*accumulator) map[metric.Metric]Band {
	out := make(map[metric.Metric]Band, len(accs))
	for m, a := range accs {
		out[m] = a.band()
	}
	return out
}
