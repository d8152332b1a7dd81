package unitturn

// DefaultTemplateID identifies the built-in unit-turn catalog.
const DefaultTemplateID = "unit-turn-standard"

type catalogRow struct {
	id    string
	code  int
	area  string
	units string
}

type catalogSection struct {
	id   string
	name string
	rows []catalogRow
}

var catalogData = []catalogSection{
	{id: "exterior", name: "Exterior (Building)", rows: []catalogRow{
		{"ext-01", 1000, "Siding / trim repair", "ls"},
		{"ext-02", 1000, "Patio / balcony repair", "ls"},
		{"ext-03", 800, "Front door & hardware", "ea"},
		{"ext-04", 810, "Exterior windows & screens", "ea"},
		{"ext-05", 1020, "Landscaping & yard cleanup", "ls"},
		{"ext-06", 1010, "Roof repair", "sf"},
	}},
	{id: "entry-living", name: "Entry & Living", rows: []catalogRow{
		{"liv-01", 300, "Flooring repair", "sf"},
		{"liv-02", 1300, "Drywall patch", "ea"},
		{"liv-03", 610, "Light fixtures", "ea"},
		{"liv-04", 820, "Blinds", "ea"},
		{"liv-05", 800, "Closet doors", "ea"},
	}},
	{id: "kitchen", name: "Kitchen & Nook", rows: []catalogRow{
		{"kit-01", 400, "Range / oven repair", "ea"},
		{"kit-02", 400, "Refrigerator repair", "ea"},
		{"kit-03", 400, "Dishwasher repair", "ea"},
		{"kit-04", 500, "Sink & faucet", "ea"},
		{"kit-05", 500, "Garbage disposal", "ea"},
		{"kit-06", 900, "Cabinet doors & hinges", "ea"},
		{"kit-07", 610, "Kitchen lighting", "ea"},
		{"kit-08", 300, "Kitchen flooring repair", "sf"},
	}},
	{id: "master-bedroom", name: "Master Bedroom", rows: []catalogRow{
		{"mbr-01", 300, "Flooring repair", "sf"},
		{"mbr-02", 1300, "Drywall patch", "ea"},
		{"mbr-03", 800, "Door & hardware", "ea"},
		{"mbr-04", 820, "Blinds", "ea"},
	}},
	{id: "master-bath", name: "Master Bath", rows: []catalogRow{
		{"mba-01", 500, "Toilet repair", "ea"},
		{"mba-02", 500, "Vanity sink & faucet", "ea"},
		{"mba-03", 520, "Tub / shower resurface", "ea"},
		{"mba-04", 510, "Mirror & accessories", "ea"},
		{"mba-05", 510, "Caulk & grout", "ls"},
		{"mba-06", 700, "Exhaust fan", "ea"},
	}},
	{id: "secondary-bedrooms", name: "Secondary Bedrooms", rows: []catalogRow{
		{"bed-01", 300, "Flooring repair", "sf"},
		{"bed-02", 1300, "Drywall patch", "ea"},
		{"bed-03", 800, "Doors & hardware", "ea"},
		{"bed-04", 820, "Blinds", "ea"},
	}},
	{id: "hall-bath", name: "Hall Bath", rows: []catalogRow{
		{"hba-01", 500, "Toilet repair", "ea"},
		{"hba-02", 500, "Vanity sink & faucet", "ea"},
		{"hba-03", 520, "Tub / shower resurface", "ea"},
		{"hba-04", 510, "Caulk & grout", "ls"},
	}},
	{id: "laundry-utility", name: "Laundry & Utility", rows: []catalogRow{
		{"lau-01", 400, "Washer / dryer repair", "ea"},
		{"lau-02", 700, "HVAC service & filter", "ea"},
		{"lau-03", 600, "Electrical outlets & switches", "ea"},
		{"lau-04", 1400, "Smoke / CO detectors", "ea"},
	}},
	{id: "whole-unit", name: "Whole Unit", rows: []catalogRow{
		{"all-01", 100, "Make ready clean", "ls"},
		{"all-02", 110, "Trash out", "ls"},
		{"all-03", 120, "Carpet cleaning", "sf"},
		{"all-04", 200, "Full paint", "sf"},
		{"all-05", 210, "Paint touch up", "ls"},
		{"all-06", 1100, "Pest control treatment", "ls"},
		{"all-07", 1200, "Re-key locks", "ea"},
	}},
	{id: "capx", name: "CAP-X — Over $1,000", rows: []catalogRow{
		{"cap-01", 310, "Carpet replacement", "sy"},
		{"cap-02", 320, "Vinyl plank replacement", "sf"},
		{"cap-03", 410, "Appliance replacement", "ea"},
		{"cap-04", 530, "Water heater replacement", "ea"},
		{"cap-05", 710, "HVAC replacement", "ea"},
		{"cap-06", 910, "Countertop replacement", "lf"},
		{"cap-07", 920, "Cabinet replacement", "lf"},
	}},
}

// catalog is built once and never mutated; DefaultTemplate hands out deep copies.
var catalog = buildCatalog()

// itemSection maps every catalog item id to its owning section name.
var itemSection = func() map[string]string {
	index := make(map[string]string)
	for _, section := range catalog.Sections {
		for _, item := range section.Items {
			index[item.ID] = section.Name
		}
	}
	return index
}()

func buildCatalog() Template {
	t := Template{ID: DefaultTemplateID, Name: "Standard Unit Turn"}
	for _, cs := range catalogData {
		section := Section{ID: cs.id, Name: cs.name, Items: make([]Item, 0, len(cs.rows))}
		for _, row := range cs.rows {
			units := row.units
			if units == "" {
				units = "ls"
			}
			section.Items = append(section.Items, Item{
				ID:          row.id,
				CostCode:    row.code,
				Area:        row.area,
				Description: row.area,
				Units:       units,
			})
		}
		t.Sections = append(t.Sections, section)
	}
	return t
}

// DefaultTemplate returns a fresh zeroed template that shares no memory with the catalog or
// with any previous result.
func DefaultTemplate() Template {
	return catalog.Clone()
}

// CatalogSectionNames returns section names in catalog order.
func CatalogSectionNames() []string {
	names := make([]string, len(catalog.Sections))
	for i, section := range catalog.Sections {
		names[i] = section.Name
	}
	return names
}

// SectionOf returns the catalog section name owning itemID.
func SectionOf(itemID string) (string, bool) {
	name, ok := itemSection[itemID]
	return name, ok
}

// Clone deep-copies the template.
func (t Template) Clone() Template {
	out := t
	out.Sections = make([]Section, len(t.Sections))
	for i, section := range t.Sections {
		s := section
		s.Items = make([]Item, len(section.Items))
		for j, item := range section.Items {
			s.Items[j] = item.clone()
		}
		out.Sections[i] = s
	}
	return out
}

// FlattenItems returns every item of t in catalog order.
func FlattenItems(t Template) []Item {
	var items []Item
	for _, section := range t.Sections {
		for _, item := range section.Items {
			items = append(items, item.clone())
		}
	}
	return items
}

// ApplyItems returns a copy of t whose items are replaced by the matching entries of items
// (matched by id), with derived fields recalculated. Items not in t are ignored.
func ApplyItems(t Template, items []Item) Template {
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := t.Clone()
	for i := range out.Sections {
		for j, item := range out.Sections[i].Items {
			if replacement, ok := byID[item.ID]; ok {
				out.Sections[i].Items[j] = replacement.clone()
			}
		}
	}
	return out.Recalculate()
}
