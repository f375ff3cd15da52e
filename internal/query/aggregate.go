package query

import (
	"math"
	"sort"

	"github.com/benvon/smart-diary/internal/models"
)

const (
	trendThreshold = 0.05
	maxTrendWindow = 3
	mostCommonN    = 3
)

// bucket collects the values of one metric type. The first metric seen for a
// type picks the bucket kind; later values of the other kind are dropped.
type bucket interface {
	add(v models.MetricValue)
	aggregate(metricType string, unit *string) models.MetricAggregation
}

type numericBucket struct {
	values []float64
}

func (b *numericBucket) add(v models.MetricValue) {
	if n, ok := v.Number(); ok {
		b.values = append(b.values, n)
	}
}

func (b *numericBucket) aggregate(metricType string, unit *string) models.MetricAggregation {
	agg := models.MetricAggregation{
		Type:   metricType,
		Values: append([]float64{}, b.values...),
		Unit:   unit,
		Trend:  DetectTrend(b.values),
	}
	if len(b.values) == 0 {
		return agg
	}

	sum := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range b.values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	avg := sum / float64(len(b.values))
	agg.Average, agg.Min, agg.Max = &avg, &lo, &hi
	return agg
}

type categoricalBucket struct {
	counts map[string]int
	order  []string // first-seen order, used to break frequency ties
}

func (b *categoricalBucket) add(v models.MetricValue) {
	s, ok := v.Text()
	if !ok {
		return
	}
	if _, seen := b.counts[s]; !seen {
		b.order = append(b.order, s)
	}
	b.counts[s]++
}

func (b *categoricalBucket) aggregate(metricType string, unit *string) models.MetricAggregation {
	ranked := append([]string{}, b.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return b.counts[ranked[i]] > b.counts[ranked[j]]
	})
	if len(ranked) > mostCommonN {
		ranked = ranked[:mostCommonN]
	}
	return models.MetricAggregation{
		Type:       metricType,
		Values:     []float64{},
		Unit:       unit,
		Trend:      models.TrendNeutral,
		MostCommon: ranked,
	}
}

// AggregateMetrics groups metrics by type, in first-seen order, and summarizes
// each group. Zero and empty values are treated as missing data and skipped.
// For trends to be meaningful, metrics should be ordered most recent first.
func AggregateMetrics(metrics []models.Metric) []models.MetricAggregation {
	type group struct {
		unit   *string
		bucket bucket
	}
	groups := make(map[string]*group)
	var order []string

	for _, m := range metrics {
		if m.Value.IsZero() {
			continue
		}
		g, ok := groups[m.Type]
		if !ok {
			g = &group{unit: m.Unit}
			if m.Value.IsNumber() {
				g.bucket = &numericBucket{}
			} else {
				g.bucket = &categoricalBucket{counts: make(map[string]int)}
			}
			groups[m.Type] = g
			order = append(order, m.Type)
		}
		g.bucket.add(m.Value)
	}

	out := make([]models.MetricAggregation, 0, len(order))
	for _, metricType := range order {
		g := groups[metricType]
		out = append(out, g.bucket.aggregate(metricType, g.unit))
	}
	return out
}

// DetectTrend compares the mean of the first window of values against the
// mean of the last window, where the window is min(3, n/2). values are
// expected most recent first. A difference under 5% of the older mean is
// neutral.
func DetectTrend(values []float64) models.Trend {
	n := len(values)
	if n < 2 {
		return models.TrendNeutral
	}
	window := n / 2
	if window > maxTrendWindow {
		window = maxTrendWindow
	}

	recent := mean(values[:window])
	older := mean(values[n-window:])
	difference := recent - older

	if math.Abs(difference) < trendThreshold*older {
		return models.TrendNeutral
	}
	if difference > 0 {
		return models.TrendUp
	}
	return models.TrendDown
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
