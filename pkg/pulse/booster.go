package pulse

import "time"

// BoostKind classifies how a boost was obtained.
type BoostKind string

const (
	// BoostKindRegular is a boost applied directly by a premium user.
	BoostKindRegular BoostKind = "regular"
	// BoostKindGift is a boost that comes from a gifted premium subscription.
	BoostKindGift BoostKind = "gift"
	// BoostKindGiveaway is a boost won in a channel giveaway.
	BoostKindGiveaway BoostKind = "giveaway"
	// BoostKindUnclaimed is a giveaway boost whose prize was not claimed.
	BoostKindUnclaimed BoostKind = "unclaimed"
)

// Booster is one boost applied to a channel.
type Booster struct {
	// ID is the server boost identifier.
	ID string `json:"id"`
	// Kind classifies the boost origin.
	Kind BoostKind `json:"kind"`
	// UserID is the boosting user, zero for unclaimed boosts.
	UserID int64 `json:"user_id,omitempty"`
	// Multiplier is how many boost slots this entry counts for.
	Multiplier int `json:"multiplier"`
	// GiveawayMessageID links giveaway boosts to the announcing post.
	GiveawayMessageID int `json:"giveaway_message_id,omitempty"`
	// GiftSlug is the gift code used to claim the boost, when any.
	GiftSlug string `json:"gift_slug,omitempty"`
	// Stars is the star prize of a stars giveaway boost.
	Stars int64 `json:"stars,omitempty"`
	// Date is when the boost was applied.
	Date time.Time `json:"date"`
	// Expires is when the boost stops counting.
	Expires time.Time `json:"expires"`
}

// Weight returns the number of boost slots this entry counts for.
func (b Booster) Weight() int {
	if b.Multiplier <= 0 {
		return 1
	}

	return b.Multiplier
}
