package unitturn

import "sort"

// costCodeTable is the reference chart of cost codes used by unit-turn line items.
var costCodeTable = []CostCode{
	{Code: 100, GLAccount: "6410-000", Description: "Make Ready Cleaning", Classification: ClassificationUT},
	{Code: 110, GLAccount: "6410-100", Description: "Trash Out / Haul Away", Classification: ClassificationUT},
	{Code: 120, GLAccount: "6410-200", Description: "Carpet Cleaning", Classification: ClassificationUT},
	{Code: 200, GLAccount: "6420-000", Description: "Interior Paint - Full", Classification: ClassificationUT},
	{Code: 210, GLAccount: "6420-100", Description: "Interior Paint - Touch Up", Classification: ClassificationUT},
	{Code: 300, GLAccount: "6510-000", Description: "Flooring Repair", Classification: ClassificationRM},
	{Code: 310, GLAccount: "1620-000", Description: "Carpet Replacement", Classification: ClassificationCapEx},
	{Code: 320, GLAccount: "1620-100", Description: "Vinyl Plank Replacement", Classification: ClassificationCapEx},
	{Code: 400, GLAccount: "6520-000", Description: "Appliance Repair", Classification: ClassificationRM},
	{Code: 410, GLAccount: "1630-000", Description: "Appliance Replacement", Classification: ClassificationCapEx},
	{Code: 500, GLAccount: "6530-000", Description: "Plumbing Repair", Classification: ClassificationRM},
	{Code: 510, GLAccount: "6530-100", Description: "Bath Fixtures & Accessories", Classification: ClassificationRM},
	{Code: 520, GLAccount: "6530-200", Description: "Tub / Shower Resurface", Classification: ClassificationRM},
	{Code: 530, GLAccount: "1640-000", Description: "Water Heater Replacement", Classification: ClassificationCapEx},
	{Code: 600, GLAccount: "6540-000", Description: "Electrical Repair", Classification: ClassificationRM},
	{Code: 610, GLAccount: "6540-100", Description: "Light Fixtures & Bulbs", Classification: ClassificationRM},
	{Code: 700, GLAccount: "6550-000", Description: "HVAC Service", Classification: ClassificationRM},
	{Code: 710, GLAccount: "1650-000", Description: "HVAC Replacement", Classification: ClassificationCapEx},
	{Code: 800, GLAccount: "6560-000", Description: "Doors & Hardware", Classification: ClassificationRM},
	{Code: 810, GLAccount: "6560-100", Description: "Windows & Screens", Classification: ClassificationRM},
	{Code: 820, GLAccount: "6430-000", Description: "Blinds & Window Coverings", Classification: ClassificationUT},
	{Code: 900, GLAccount: "6570-000", Description: "Cabinet Repair", Classification: ClassificationRM},
	{Code: 910, GLAccount: "1660-000", Description: "Countertop Replacement", Classification: ClassificationCapEx},
	{Code: 920, GLAccount: "1660-100", Description: "Cabinet Replacement", Classification: ClassificationCapEx},
	{Code: 1000, GLAccount: "6580-000", Description: "Exterior Repair", Classification: ClassificationRM},
	{Code: 1010, GLAccount: "1610-000", Description: "Roofing", Classification: ClassificationCapEx},
	{Code: 1020, GLAccount: "6580-100", Description: "Landscaping", Classification: ClassificationRM},
	{Code: 1100, GLAccount: "6440-000", Description: "Pest Control", Classification: ClassificationUT},
	{Code: 1200, GLAccount: "6450-000", Description: "Keys & Lock Change", Classification: ClassificationUT},
	{Code: 1300, GLAccount: "6590-000", Description: "Drywall Repair", Classification: ClassificationRM},
	{Code: 1400, GLAccount: "6460-000", Description: "Smoke / CO Detectors", Classification: ClassificationUT},
}

var costCodeIndex = func() map[int]CostCode {
	index := make(map[int]CostCode, len(costCodeTable))
	for _, row := range costCodeTable {
		index[row.Code] = row
	}
	return index
}()

// LookupCostCode resolves a cost code. The second result is false for unknown codes.
func LookupCostCode(code int) (CostCode, bool) {
	row, ok := costCodeIndex[code]
	return row, ok
}

// CostCodes returns a copy of the registry ordered by code.
func CostCodes() []CostCode {
	rows := make([]CostCode, len(costCodeTable))
	copy(rows, costCodeTable)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}
