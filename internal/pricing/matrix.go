package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
)

// MatrixRequest asks for one cell per (plan, quantity). Empty lists default
// to the catalog tiers and plans.
type MatrixRequest struct {
	Quantities []int     `json:"quantities"`
	PlanIDs    []string  `json:"plan_ids"`
	Selection  Selection `json:"selection"`
}

// MatrixCell is one priced (plan, quantity) pair. Disabled cells fall below
// the product MOQ and are priced for display only.
type MatrixCell struct {
	Quantity     int             `json:"quantity"`
	NetPrice     decimal.Decimal `json:"net_price"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Total        decimal.Decimal `json:"total"`
	Disabled     bool            `json:"disabled"`
	Interpolated bool            `json:"interpolated"`
}

// MatrixRow holds the cells of one lead-time plan in quantity order.
type MatrixRow struct {
	Plan  LeadTimePlan `json:"plan"`
	Cells []MatrixCell `json:"cells"`
}

// Matrix is the comparison grid rendered next to the configurator.
type Matrix struct {
	Quantities []int       `json:"quantities"`
	Rows       []MatrixRow `json:"rows"`
}

// Cell returns the cell for the given plan and quantity.
func (m Matrix) Cell(planID string, quantity int) (MatrixCell, bool) {
	for _, row := range m.Rows {
		if row.Plan.ID != planID {
			continue
		}
		for _, cell := range row.Cells {
			if cell.Quantity == quantity {
				return cell, true
			}
		}
	}
	return MatrixCell{}, false
}

// Normalize fills defaults, sorts quantities and drops duplicates so equal
// requests share a cache key.
func (c *Calculator) Normalize(req MatrixRequest) MatrixRequest {
	quantities := req.Quantities
	if len(quantities) == 0 {
		quantities = c.catalog.TierQuantities()
	}
	seen := make(map[int]struct{}, len(quantities))
	uniq := make([]int, 0, len(quantities))
	for _, qty := range quantities {
		if _, ok := seen[qty]; ok {
			continue
		}
		seen[qty] = struct{}{}
		uniq = append(uniq, qty)
	}
	sort.Ints(uniq)

	plans := req.PlanIDs
	if len(plans) == 0 {
		plans = c.catalog.PlanIDs()
	}
	planSeen := make(map[string]struct{}, len(plans))
	planIDs := make([]string, 0, len(plans))
	for _, id := range plans {
		if _, ok := planSeen[id]; ok {
			continue
		}
		planSeen[id] = struct{}{}
		planIDs = append(planIDs, id)
	}

	sel := req.Selection
	sel.Quantity = 0
	sel.PlanID = ""
	sel.MaterialID = orDefault(sel.MaterialID, c.catalog.DefaultMaterial)
	sel.FeatureID = orDefault(sel.FeatureID, c.catalog.DefaultFeature)
	if sel.ReferenceUnitPrice.Equal(c.catalog.ReferenceUnitPrice) {
		sel.ReferenceUnitPrice = decimal.Zero
	}
	if sel.MOQ < 0 || (len(uniq) > 0 && sel.MOQ <= uniq[0]) {
		sel.MOQ = 0
	}
	sel.Services = activeServices(sel.Services)
	return MatrixRequest{Quantities: uniq, PlanIDs: planIDs, Selection: sel}
}

// activeServices keeps only the enabled toggles; nil when none are on.
func activeServices(flags map[string]bool) map[string]bool {
	var active map[string]bool
	for id, on := range flags {
		if !on {
			continue
		}
		if active == nil {
			active = make(map[string]bool, len(flags))
		}
		active[id] = true
	}
	return active
}

// Matrix prices every (plan, quantity) pair holding the other selections
// fixed. Cells are independent so evaluation is sequential.
func (c *Calculator) Matrix(req MatrixRequest) (Matrix, error) {
	req = c.Normalize(req)
	if len(req.Quantities) > maxMatrixQuantities {
		return Matrix{}, pkgerrors.Newf(pkgerrors.CodeValidation, "matrix is limited to %d quantities", maxMatrixQuantities)
	}

	matrix := Matrix{
		Quantities: req.Quantities,
		Rows:       make([]MatrixRow, 0, len(req.PlanIDs)),
	}
	for _, planID := range req.PlanIDs {
		plan, ok := c.catalog.Plan(planID)
		if !ok {
			return Matrix{}, unknownOption("lead time plan", planID, c.catalog.PlanIDs())
		}
		row := MatrixRow{Plan: plan, Cells: make([]MatrixCell, 0, len(req.Quantities))}
		for _, qty := range req.Quantities {
			sel := req.Selection
			sel.Quantity = qty
			sel.PlanID = planID
			result, err := c.Calculate(sel)
			if err != nil {
				return Matrix{}, err
			}
			row.Cells = append(row.Cells, MatrixCell{
				Quantity:     qty,
				NetPrice:     result.NetPrice,
				UnitPrice:    result.UnitPrice,
				Total:        result.Total,
				Disabled:     result.BelowMOQ,
				Interpolated: result.Breakdown.Interpolated,
			})
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	c.metrics.AddMatrixCells(len(req.Quantities) * len(req.PlanIDs))
	return matrix, nil
}

const maxMatrixQuantities = 50
