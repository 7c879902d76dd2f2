// Package plan is the static credit-pack catalog. Checkout and crediting
// both resolve plans from here; entries never change at runtime.
package plan

import (
	"fmt"
	"slices"

	"github.com/xraph/mockprep/types"
)

const (
	Starter = "starter"
	Pro     = "pro"
)

// Plan is one purchasable credit pack.
type Plan struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Credits     int64       `json:"credits"`
	Price       types.Money `json:"price"`
	Description string      `json:"description"`
}

var catalog = []Plan{
	{
		ID:          Starter,
		Name:        "Starter",
		Credits:     60,
		Price:       types.USD(1000),
		Description: "60 interview credits",
	},
	{
		ID:          Pro,
		Name:        "Pro",
		Credits:     300,
		Price:       types.USD(4500),
		Description: "300 interview credits",
	},
}

// All returns a copy of the catalog in display order.
func All() []Plan {
	return slices.Clone(catalog)
}

// Lookup resolves a plan by id.
func Lookup(planID string) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == planID {
			return p, true
		}
	}
	return Plan{}, false
}

// MustLookup is like Lookup but panics for unknown ids. Use for constants.
func MustLookup(planID string) Plan {
	p, ok := Lookup(planID)
	if !ok {
		panic(fmt.Sprintf("plan: unknown plan %q", planID))
	}
	return p
}
