package categorizer

import (
	"strings"
	"unicode"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// DefaultActivityMappings maps activity-code prefixes to categories. Order is
// priority: narrower prefixes come before the broader ones they overlap.
var DefaultActivityMappings = []domain.ActivityMapping{
	// Retail food: supermarkets, bakeries, butchers, produce.
	{CodePrefix: "4711", Category: CategoryFood},
	{CodePrefix: "4712", Category: CategoryFood},
	{CodePrefix: "4721", Category: CategoryFood},
	{CodePrefix: "4722", Category: CategoryFood},
	{CodePrefix: "4723", Category: CategoryFood},
	{CodePrefix: "4724", Category: CategoryFood},
	{CodePrefix: "4729", Category: CategoryFood},
	{CodePrefix: "561", Category: CategoryFood},
	// Fuel and vehicles.
	{CodePrefix: "4731", Category: CategoryTransport},
	{CodePrefix: "4732", Category: CategoryTransport},
	{CodePrefix: "4520", Category: CategoryTransport},
	{CodePrefix: "4530", Category: CategoryTransport},
	{CodePrefix: "49", Category: CategoryTransport},
	{CodePrefix: "52", Category: CategoryTransport},
	{CodePrefix: "4771", Category: CategoryHealth},
	{CodePrefix: "4772", Category: CategoryShopping},
	{CodePrefix: "86", Category: CategoryHealth},
	{CodePrefix: "87", Category: CategoryHealth},
	{CodePrefix: "85", Category: CategoryEducation},
	{CodePrefix: "61", Category: CategoryServices},
	{CodePrefix: "62", Category: CategoryServices},
	{CodePrefix: "63", Category: CategoryServices},
	{CodePrefix: "59", Category: CategoryLeisure},
	{CodePrefix: "90", Category: CategoryLeisure},
	{CodePrefix: "93", Category: CategoryLeisure},
	{CodePrefix: "55", Category: CategoryTravel},
	{CodePrefix: "51", Category: CategoryTravel},
	{CodePrefix: "79", Category: CategoryTravel},
	{CodePrefix: "35", Category: CategoryHousing},
	{CodePrefix: "36", Category: CategoryHousing},
	{CodePrefix: "68", Category: CategoryHousing},
	{CodePrefix: "64", Category: CategoryServices},
	{CodePrefix: "65", Category: CategoryServices},
	{CodePrefix: "66", Category: CategoryServices},
	{CodePrefix: "84", Category: CategoryTaxes},
	// Remaining retail and wholesale.
	{CodePrefix: "47", Category: CategoryShopping},
	{CodePrefix: "45", Category: CategoryShopping},
	{CodePrefix: "46", Category: CategoryShopping},
	// Food manufacturing sold direct (bakery-factories, beverages).
	{CodePrefix: "10", Category: CategoryFood},
	{CodePrefix: "11", Category: CategoryFood},
}

// ActivityMapper resolves activity codes to categories by ordered prefix.
type ActivityMapper struct {
	mappings []domain.ActivityMapping
}

// NewActivityMapper copies mappings. Prefixes are compared on digits only so
// that "4721-1/02" and "4721102" are the same code.
func NewActivityMapper(mappings []domain.ActivityMapping) *ActivityMapper {
	m := make([]domain.ActivityMapping, 0, len(mappings))
	for _, am := range mappings {
		prefix := digitsOnly(am.CodePrefix)
		if prefix == "" || am.Category == "" {
			continue
		}
		m = append(m, domain.ActivityMapping{CodePrefix: prefix, Category: am.Category})
	}
	return &ActivityMapper{mappings: m}
}

// CategoryFor returns the category of the first mapping whose prefix starts
// code, or "" when code is empty or nothing matches.
func (a *ActivityMapper) CategoryFor(code string) string {
	code = digitsOnly(code)
	if code == "" {
		return ""
	}
	for _, m := range a.mappings {
		if strings.HasPrefix(code, m.CodePrefix) {
			return m.Category
		}
	}
	return ""
}

// Categories lists the distinct categories the mapper can return.
func (a *ActivityMapper) Categories() []string {
	out := make([]string, 0, len(a.mappings))
	for _, m := range a.mappings {
		out = append(out, m.Category)
	}
	return out
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
