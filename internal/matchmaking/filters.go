package matchmaking

import (
	"fmt"
	"strings"

	"github.com/mossy-p/stranger-signaling/internal/models"
)

// Criteria is everything the queue needs to decide whether two searchers fit.
type Criteria struct {
	Filters models.Filters
	Profile models.Profile
}

// NewCriteria trims and validates client supplied filters and profile.
func NewCriteria(filters *models.Filters, profile *models.Profile) (Criteria, error) {
	var c Criteria
	if filters != nil {
		c.Filters = *filters
	}
	if profile != nil {
		c.Profile = *profile
	}

	c.Filters.Gender = models.Gender(strings.ToLower(strings.TrimSpace(string(c.Filters.Gender))))
	switch c.Filters.Gender {
	case "":
		c.Filters.Gender = models.GenderAny
	case models.GenderAny, models.GenderMale, models.GenderFemale, models.GenderBoth:
	default:
		return Criteria{}, fmt.Errorf("%w: unknown gender filter %q", ErrInvalidCriteria, c.Filters.Gender)
	}

	c.Profile.Gender = models.Gender(strings.ToLower(strings.TrimSpace(string(c.Profile.Gender))))
	switch c.Profile.Gender {
	case "", models.GenderMale, models.GenderFemale:
	default:
		return Criteria{}, fmt.Errorf("%w: unknown declared gender %q", ErrInvalidCriteria, c.Profile.Gender)
	}

	c.Filters.Location = strings.TrimSpace(c.Filters.Location)
	c.Profile.Country = strings.TrimSpace(c.Profile.Country)
	c.Profile.City = strings.TrimSpace(c.Profile.City)
	c.Profile.Area = strings.TrimSpace(c.Profile.Area)
	return c, nil
}

// Compatible reports whether a and b accept each other.
func Compatible(a, b Criteria) bool {
	return a.accepts(b) && b.accepts(a)
}

func (c Criteria) accepts(other Criteria) bool {
	return genderAccepts(c.Filters.Gender, other.Profile.Gender) &&
		locationAccepts(c.Filters.Location, other.locations())
}

func genderAccepts(filter, declared models.Gender) bool {
	switch filter {
	case "", models.GenderAny:
		return true
	case models.GenderBoth:
		return declared == models.GenderMale || declared == models.GenderFemale
	default:
		return declared == filter
	}
}

func locationAccepts(filter string, declared []string) bool {
	if filter == "" {
		return true
	}
	for _, loc := range declared {
		if strings.EqualFold(filter, loc) {
			return true
		}
	}
	return false
}

// locations lists the place names this searcher declares. A searcher that
// declares nothing is taken to be where its own location filter points.
func (c Criteria) locations() []string {
	var out []string
	for _, loc := range []string{c.Profile.Country, c.Profile.City, c.Profile.Area} {
		if loc != "" {
			out = append(out, loc)
		}
	}
	if len(out) == 0 && c.Filters.Location != "" {
		out = append(out, c.Filters.Location)
	}
	return out
}
