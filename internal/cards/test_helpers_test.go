package cards

import "fmt"

// newCallCard creates a normal dispatch card with typical costs
func newCallCard(id int, arc, arcNumber string) Card {
	return Card{
		ID:        id,
		Headline:  fmt.Sprintf("Call %d", id),
		StoryArc:  arc,
		ArcNumber: arcNumber,
		Responses: Responses{
			ResponseIgnore:  {Readiness: 2, Outcome: "The call goes unanswered."},
			ResponseBasic:   {Readiness: -20, Score: 50, Outcome: "A unit rolls out."},
			ResponseMaximum: {Readiness: -40, Capacity: 10, Score: 120, Outcome: "Everyone responds."},
		},
	}
}

// newPowerupCard creates a powerup card granting value readiness
func newPowerupCard(id, value int) Card {
	return Card{
		ID:           id,
		Headline:     "Coffee run",
		StoryArc:     ArcPowerup,
		IsPowerup:    true,
		PowerupValue: value,
		Responses: Responses{
			ResponseAccept: {Readiness: value, Outcome: "Fresh coffee arrives."},
		},
	}
}

// createTestCatalog builds a catalog with a 5-card primary arc, a 3-card side arc,
// 30 random cards and 8 powerups
func createTestCatalog() Catalog {
	var catalog Catalog
	id := 1
	for _, n := range []string{"3", "1", "5", "2", "4"} {
		catalog = append(catalog, newCallCard(id, "Fog Bank", n))
		id++
	}
	for _, n := range []string{"2", "1", "3"} {
		catalog = append(catalog, newCallCard(id, "Cable Car", n))
		id++
	}
	for i := 0; i < 30; i++ {
		catalog = append(catalog, newCallCard(id, ArcRandom, ""))
		id++
	}
	for i := 0; i < 8; i++ {
		catalog = append(catalog, newPowerupCard(id, 25))
		id++
	}
	return catalog
}
