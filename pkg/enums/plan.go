package enums

import "fmt"

// Plan maps to the plan enum in Postgres.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

var validPlans = []Plan{PlanFree, PlanPro, PlanTeam}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical plan enum.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// AllowsSMS reports whether the plan tier may receive SMS reminders.
func (p Plan) AllowsSMS() bool {
	return p == PlanPro || p == PlanTeam
}

// ParsePlan converts raw input into Plan.
func ParsePlan(value string) (Plan, error) {
	for _, candidate := range validPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}
