package adversarial

// Result is a scenario's pass/fail verdict plus the metrics its success
// criteria were evaluated against, for forensic reporting.
type Result struct {
	Scenario string
	Pass     bool
	Detail   string
	Metrics  map[string]float64
}
