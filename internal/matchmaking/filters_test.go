package matchmaking

import (
	"errors"
	"testing"

	"github.com/mossy-p/stranger-signaling/internal/models"
)

func criteria(t *testing.T, gender models.Gender, location string, profile models.Profile) Criteria {
	t.Helper()
	c, err := NewCriteria(&models.Filters{Gender: gender, Location: location}, &profile)
	if err != nil {
		t.Fatalf("NewCriteria() error = %v", err)
	}
	return c
}

func TestCompatible(t *testing.T) {
	male := models.Profile{Gender: models.GenderMale}
	female := models.Profile{Gender: models.GenderFemale}
	undeclared := models.Profile{}

	tests := []struct {
		name string
		a, b Criteria
		want bool
	}{
		{
			name: "no filters on either side",
			a:    criteria(t, "", "", undeclared),
			b:    criteria(t, models.GenderAny, "", undeclared),
			want: true,
		},
		{
			name: "mutual gender preference",
			a:    criteria(t, models.GenderFemale, "", male),
			b:    criteria(t, models.GenderMale, "", female),
			want: true,
		},
		{
			name: "one side rejects the other",
			a:    criteria(t, models.GenderFemale, "", male),
			b:    criteria(t, models.GenderAny, "", male),
			want: false,
		},
		{
			name: "any does not override the other side's preference",
			a:    criteria(t, models.GenderAny, "", male),
			b:    criteria(t, models.GenderFemale, "", female),
			want: false,
		},
		{
			name: "both accepts either declared gender",
			a:    criteria(t, models.GenderBoth, "", male),
			b:    criteria(t, models.GenderAny, "", female),
			want: true,
		},
		{
			name: "both rejects an undeclared gender",
			a:    criteria(t, models.GenderBoth, "", male),
			b:    criteria(t, models.GenderAny, "", undeclared),
			want: false,
		},
		{
			name: "location equal ignoring case",
			a:    criteria(t, "", "Japan", undeclared),
			b:    criteria(t, "", "  JAPAN ", undeclared),
			want: true,
		},
		{
			name: "different locations",
			a:    criteria(t, "", "Japan", undeclared),
			b:    criteria(t, "", "France", undeclared),
			want: false,
		},
		{
			name: "location filter against declared city",
			a:    criteria(t, "", "osaka", undeclared),
			b:    criteria(t, "", "", models.Profile{Country: "Japan", City: "Osaka"}),
			want: true,
		},
		{
			name: "location filter against declared area",
			a:    criteria(t, "", "Kita", models.Profile{Country: "Japan"}),
			b:    criteria(t, "", "", models.Profile{Country: "Japan", City: "Osaka", Area: "kita"}),
			want: true,
		},
		{
			name: "location filter against searcher declaring nothing",
			a:    criteria(t, "", "Japan", undeclared),
			b:    criteria(t, "", "", undeclared),
			want: false,
		},
		{
			name: "declared profile overrides own filter as location",
			a:    criteria(t, "", "France", undeclared),
			b:    criteria(t, "", "France", models.Profile{Country: "Japan"}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compatible(tt.a, tt.b); got != tt.want {
				t.Errorf("Compatible(a, b) = %v, want %v", got, tt.want)
			}
			if got := Compatible(tt.b, tt.a); got != tt.want {
				t.Errorf("Compatible(b, a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCriteria(t *testing.T) {
	c, err := NewCriteria(nil, nil)
	if err != nil {
		t.Fatalf("NewCriteria(nil, nil) error = %v", err)
	}
	if c.Filters.Gender != models.GenderAny {
		t.Errorf("default gender filter = %q, want any", c.Filters.Gender)
	}

	c, err = NewCriteria(&models.Filters{Gender: " Female "}, &models.Profile{Gender: "MALE", City: " Lyon "})
	if err != nil {
		t.Fatalf("NewCriteria() error = %v", err)
	}
	if c.Filters.Gender != models.GenderFemale || c.Profile.Gender != models.GenderMale || c.Profile.City != "Lyon" {
		t.Errorf("NewCriteria() = %+v, want normalized values", c)
	}

	if _, err := NewCriteria(&models.Filters{Gender: "robot"}, nil); !errors.Is(err, ErrInvalidCriteria) {
		t.Errorf("unknown filter error = %v, want ErrInvalidCriteria", err)
	}
	if _, err := NewCriteria(nil, &models.Profile{Gender: models.GenderBoth}); !errors.Is(err, ErrInvalidCriteria) {
		t.Errorf("declared gender both error = %v, want ErrInvalidCriteria", err)
	}
}
