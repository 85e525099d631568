package report

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v5"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
)

var scenarioSummaryTpl = pongo2.Must(pongo2.FromString(`{% autoescape off %}Monte Carlo Simulation Summary
==============================

Configuration: {{ array.Name }}
Number of Sensors: {{ array.Sensors }}
Number of Pole Pairs: {{ array.PolePairs }}
Failed Sensors: {{ failures }}
Number of Runs: {{ runs }}
Theoretical Resolution: {{ theoretical }} bits

Results Summary:
----------------
{% for m in metrics %}
{{ m.Name }}:
  Mean: {{ m.Mean }}
  Standard Deviation: {{ m.Std }}
  Range (99% confidence): {{ m.P01 }} to {{ m.P99 }}
  Min: {{ m.Min }}
  Max: {{ m.Max }}
{% endfor %}
{% for c in claims %}{% if c.Passed %}✓ VALIDATES{% else %}✗ DOES NOT VALIDATE{% endif %} {{ c.Name }} claim: {{ c.Value }} bits (threshold {{ c.Threshold }})
{% endfor %}{% endautoescape %}`))

var comparativeSummaryTpl = pongo2.Must(pongo2.FromString(`{% autoescape off %}Comparative Analysis Summary
============================

{{ header }}
{% for row in rows %}{{ row }}
{% endfor %}
Claims:
-------
Resolution: {{ claim_bits }} bits
Functionality with failed sensors above {{ fault_bits }} bits

Validation Summary:
-------------------
{% for v in verdicts %}{{ v }}
{% endfor %}{% endautoescape %}`))

type metricLine struct {
	Name                          string
	Mean, Std, P01, P99, Min, Max string
}

type claimLine struct {
	Name             string
	Passed           bool
	Value, Threshold string
}

func g6(v float64) string { return fmt.Sprintf("%.6g", v) }

// ScenarioSummary renders the text summary of one Monte Carlo scenario.
func ScenarioSummary(s analysis.ScenarioSummary) (string, error) {
	metrics := make([]metricLine, 0, len(analysis.Metrics))
	for _, name := range analysis.Metrics {
		st, ok := s.Stats[name]
		if !ok {
			continue
		}
		metrics = append(metrics, metricLine{
			Name: name,
			Mean: g6(st.Mean), Std: g6(st.Std),
			P01: g6(st.P01), P99: g6(st.P99),
			Min: g6(st.Min), Max: g6(st.Max),
		})
	}
	claims := make([]claimLine, len(s.Claims))
	for i, c := range s.Claims {
		claims[i] = claimLine{Name: c.Name, Passed: c.Passed, Value: fmt.Sprintf("%.2f", c.Value), Threshold: fmt.Sprintf("%.2f", c.Threshold)}
	}

	return scenarioSummaryTpl.Execute(pongo2.Context{
		"array":       s.Array,
		"failures":    s.Scenario.Failures,
		"runs":        len(s.Runs),
		"theoretical": fmt.Sprintf("%.2f", s.TheoreticalBits),
		"metrics":     metrics,
		"claims":      claims,
	})
}

// ComparativeSummary renders the cross-array comparison table and verdicts.
func ComparativeSummary(c analysis.Comparative, claimBits, faultBits float64) (string, error) {
	header := fmt.Sprintf("%-20s %-15s %-20s %-20s\n%s %s %s %s",
		"Configuration", "Failures", "Resolution (bits)", "Error (degrees)",
		strings.Repeat("-", 20), strings.Repeat("-", 15), strings.Repeat("-", 20), strings.Repeat("-", 20))

	rows := make([]string, len(c.Rows))
	for i, r := range c.Rows {
		rows[i] = fmt.Sprintf("%-20s %-15s %-20.2f %-20.6f", r.Array, r.Scenario, r.ResolutionBitsP99, r.ErrorP99)
	}

	var verdicts []string
	for _, v := range c.Verdicts {
		if v.Resolution != nil {
			if v.Resolution.Passed {
				verdicts = append(verdicts, fmt.Sprintf("✓ %s: VALIDATES resolution claim with %.2f bits", v.Array, v.Resolution.Value))
			} else {
				verdicts = append(verdicts, fmt.Sprintf("✗ %s: DOES NOT VALIDATE resolution claim with %.2f bits", v.Array, v.Resolution.Value))
			}
		}
		if v.FaultTolerant() {
			verdicts = append(verdicts, fmt.Sprintf("✓ %s: VALIDATES fault tolerance claim with up to %d failed sensors", v.Array, v.MaxToleratedFailures))
		} else {
			verdicts = append(verdicts, fmt.Sprintf("✗ %s: DOES NOT VALIDATE fault tolerance claim", v.Array))
		}
	}

	return comparativeSummaryTpl.Execute(pongo2.Context{
		"header":     header,
		"rows":       rows,
		"verdicts":   verdicts,
		"claim_bits": fmt.Sprintf("%g", claimBits),
		"fault_bits": fmt.Sprintf("%g", faultBits),
	})
}
