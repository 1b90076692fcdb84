package memorystore

// Metric names one of the sampled streams kept per symbol.
type Metric string

const (
	MetricPrice  Metric = "price"  // last traded price
	MetricVolume Metric = "volume" // rolling 24h base-asset volume
)

// Sample is a single point-in-time observation. Seq increases by one for every
// sample recorded for the same symbol and metric.
type Sample struct {
	Value float64 `json:"value"`
	Seq   uint64  `json:"seq"`
}
