package classification

import "github.com/Veraticus/fintrack/internal/model"

// DefaultTable returns the built-in keyword table. Rules are checked in order.
func DefaultTable() Table {
	return Table{
		{Category: model.CategoryFood, Keywords: []string{"swiggy", "zomato", "grocery", "restaurant"}},
		{Category: model.CategoryTransport, Keywords: []string{"uber", "ola", "petrol", "fuel"}},
		{Category: model.CategoryHousing, Keywords: []string{"rent", "electricity", "maintenance"}},
		{Category: model.CategoryShopping, Keywords: []string{"amazon", "flipkart", "myntra"}},
		{Category: model.CategoryHealth, Keywords: []string{"hospital", "pharmacy", "medicine"}},
		{Category: model.CategoryEntertainment, Keywords: []string{"movie", "netflix", "concert"}},
		{Category: model.CategoryTravel, Keywords: []string{"hotel", "flight", "vacation"}},
		{Category: model.CategoryEducation, Keywords: []string{"course", "tuition", "books"}},
	}
}
