package boosters

import (
	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

// Counts summarizes the boost slots of the items loaded so far.
type Counts struct {
	Regular   int `json:"regular"`
	Gift      int `json:"gift"`
	Giveaway  int `json:"giveaway"`
	Unclaimed int `json:"unclaimed"`
	// Slots is the sum of every kind, weighted by multiplier.
	Slots int `json:"slots"`
	// Entries is the number of boost entries counted.
	Entries int `json:"entries"`
	// Users is the number of distinct boosting users.
	Users int `json:"users"`
}

// Tally counts the boosters accumulated in state.
func Tally(state livecache.State[pulse.Booster]) Counts {
	return TallyItems(state.Items)
}

// TallyItems counts boosters by kind, weighting each by its multiplier.
func TallyItems(boosters []pulse.Booster) Counts {
	tally := Counts{}
	users := make(map[int64]struct{})
	for _, booster := range boosters {
		weight := booster.Weight()
		switch booster.Kind {
		case pulse.BoostKindGift:
			tally.Gift += weight
		case pulse.BoostKindGiveaway:
			tally.Giveaway += weight
		case pulse.BoostKindUnclaimed:
			tally.Unclaimed += weight
		default:
			tally.Regular += weight
		}
		tally.Slots += weight
		tally.Entries++
		if booster.UserID != 0 {
			users[booster.UserID] = struct{}{}
		}
	}
	tally.Users = len(users)

	return tally
}
