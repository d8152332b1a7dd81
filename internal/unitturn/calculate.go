package unitturn

// OtherSectionName groups items whose id is not part of the catalog.
const OtherSectionName = "Other"

// ItemTotal returns the project cost contribution of a single item. Damages are never part of
// it.
func ItemTotal(item Item) float64 {
	return item.Quantity * item.CostPerUnit
}

// SummarizeSection aggregates a section's items. Project totals are recomputed from
// quantity and cost per unit; the stored Total is ignored.
func SummarizeSection(name string, items []Item) SectionSummary {
	summary := SectionSummary{SectionName: name}
	for _, item := range items {
		if item.Active() {
			summary.ItemCount++
		}
		summary.ProjectTotal += ItemTotal(item)
		summary.DamageTotal += item.Damages
	}
	return summary
}

// GrandTotals sums project cost and damage charges over every section, independently.
func GrandTotals(t Template) Totals {
	var totals Totals
	for _, section := range t.Sections {
		summary := SummarizeSection(section.Name, section.Items)
		totals.GrandTotalProjectCost += summary.ProjectTotal
		totals.GrandTotalDamageCharges += summary.DamageTotal
	}
	return totals
}

// Recalculate returns a copy of t with every cached derived field refreshed.
func (t Template) Recalculate() Template {
	out := t.Clone()
	for i := range out.Sections {
		section := &out.Sections[i]
		for j := range section.Items {
			section.Items[j].Total = ItemTotal(section.Items[j])
		}
		summary := SummarizeSection(section.Name, section.Items)
		section.Subtotal = summary.ProjectTotal
		section.DamageSubtotal = summary.DamageTotal
	}
	totals := GrandTotals(out)
	out.GrandTotalProjectCost = totals.GrandTotalProjectCost
	out.GrandTotalDamageCharges = totals.GrandTotalDamageCharges
	return out
}

// Calculate derives the consolidated totals for a flat item collection. Items are attributed
// to catalog sections by id; summaries follow catalog order and include empty sections. Items
// unknown to the catalog are reported in a trailing OtherSectionName summary.
func Calculate(items []Item) Calculation {
	names := CatalogSectionNames()
	grouped := make(map[string][]Item, len(names))
	var other []Item
	for _, item := range items {
		name, ok := SectionOf(item.ID)
		if !ok {
			other = append(other, item)
			continue
		}
		grouped[name] = append(grouped[name], item)
	}

	calc := Calculation{SectionSummaries: make([]SectionSummary, 0, len(names)+1)}
	for _, name := range names {
		calc.SectionSummaries = append(calc.SectionSummaries, SummarizeSection(name, grouped[name]))
	}
	if len(other) > 0 {
		calc.SectionSummaries = append(calc.SectionSummaries, SummarizeSection(OtherSectionName, other))
	}

	for _, item := range items {
		calc.TotalProjectCost += ItemTotal(item)
		calc.TotalDamageCharges += item.Damages
	}
	for _, summary := range calc.SectionSummaries {
		calc.TotalLineItems += summary.ItemCount
	}
	// Damage charges are billed separately and must never reach GrandTotal.
	calc.GrandTotal = calc.TotalProjectCost
	return calc
}

// ActiveLineItems converts the active items of a collection into persisted line items.
// OrderIndex follows the position among active items, starting at zero.
func ActiveLineItems(items []Item) []LineItem {
	lines := make([]LineItem, 0, len(items))
	for _, item := range items {
		if !item.Active() {
			continue
		}
		section, ok := SectionOf(item.ID)
		if !ok {
			section = OtherSectionName
		}
		line := LineItem{
			ItemID:       item.ID,
			CostCode:     item.CostCode,
			SectionName:  section,
			Description:  item.Description,
			Quantity:     item.Quantity,
			Units:        item.Units,
			CostPerUnit:  item.CostPerUnit,
			DamageAmount: item.Damages,
			OrderIndex:   len(lines),
		}
		if item.Notes != "" {
			notes := item.Notes
			line.ItemNotes = &notes
		}
		if len(item.Photos) > 0 {
			line.Photos = append([]PhotoRef(nil), item.Photos...)
		}
		lines = append(lines, line)
	}
	return lines
}

// InstanceTotalsOf projects a calculation onto the instance-level persistence record.
func InstanceTotalsOf(calc Calculation, status Status) InstanceTotals {
	return InstanceTotals{
		TotalProjectCost:   calc.TotalProjectCost,
		TotalDamageCharges: calc.TotalDamageCharges,
		Status:             status,
	}
}
