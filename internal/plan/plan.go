// Package plan defines the closed catalog of service tiers. Plans are fixed at
// build time; incoming plan identifiers are validated against this set and
// checkout pricing is computed from it.
package plan

// Features enumerates the capability flags attached to a plan.
type Features struct {
	CustomJS bool `json:"custom_js"`
	Proxy    bool `json:"proxy"`
	Priority bool `json:"priority"`
}

// Plan describes one service tier.
type Plan struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	MonthlyPricePence int64    `json:"monthly_price_pence"`
	RequestsIncluded  int64    `json:"requests_included"`
	RequestsPerMinute int      `json:"requests_per_minute"`
	TimeoutSeconds    int      `json:"timeout_seconds"`
	OveragePer1kPence int64    `json:"overage_per_1k_pence"`
	Features          Features `json:"features"`
}

const (
	Free    = "free"
	Starter = "starter"
	Growth  = "growth"
	Scale   = "scale"
)

var catalog = map[string]Plan{
	Free: {
		ID:                Free,
		Name:              "Free",
		MonthlyPricePence: 0,
		RequestsIncluded:  1000,
		RequestsPerMinute: 5,
		TimeoutSeconds:    15,
	},
	Starter: {
		ID:                Starter,
		Name:              "Starter",
		MonthlyPricePence: 700,
		RequestsIncluded:  10000,
		RequestsPerMinute: 10,
		TimeoutSeconds:    30,
		OveragePer1kPence: 80,
		Features:          Features{CustomJS: true},
	},
	Growth: {
		ID:                Growth,
		Name:              "Growth",
		MonthlyPricePence: 2500,
		RequestsIncluded:  50000,
		RequestsPerMinute: 30,
		TimeoutSeconds:    45,
		OveragePer1kPence: 60,
		Features:          Features{CustomJS: true, Proxy: true},
	},
	Scale: {
		ID:                Scale,
		Name:              "Scale",
		MonthlyPricePence: 7900,
		RequestsIncluded:  200000,
		RequestsPerMinute: 60,
		TimeoutSeconds:    60,
		OveragePer1kPence: 45,
		Features:          Features{CustomJS: true, Proxy: true, Priority: true},
	},
}

var ordered = []string{Free, Starter, Growth, Scale}

// ByID returns the plan for id.
func ByID(id string) (Plan, bool) {
	p, ok := catalog[id]
	return p, ok
}

// Valid reports whether id names a known plan.
func Valid(id string) bool {
	_, ok := catalog[id]
	return ok
}

// All returns the catalog in tier order.
func All() []Plan {
	plans := make([]Plan, 0, len(ordered))
	for _, id := range ordered {
		plans = append(plans, catalog[id])
	}
	return plans
}

// Paid reports whether the plan carries a recurring charge.
func (p Plan) Paid() bool {
	return p.MonthlyPricePence > 0
}
