package pulse

import "time"

// ValueAndPrevious is a metric for the current period next to the previous one.
type ValueAndPrevious struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

// Delta returns Current minus Previous.
func (v ValueAndPrevious) Delta() float64 {
	return v.Current - v.Previous
}

// Percentage is a part of a total.
type Percentage struct {
	Part  float64 `json:"part"`
	Total float64 `json:"total"`
}

// Ratio returns Part divided by Total, or zero when Total is zero.
func (p Percentage) Ratio() float64 {
	if p.Total == 0 {
		return 0
	}

	return p.Part / p.Total
}

// ChannelStats is the summary block of a broadcast channel statistics screen.
type ChannelStats struct {
	PeriodStart          time.Time        `json:"period_start"`
	PeriodEnd            time.Time        `json:"period_end"`
	Followers            ValueAndPrevious `json:"followers"`
	ViewsPerPost         ValueAndPrevious `json:"views_per_post"`
	SharesPerPost        ValueAndPrevious `json:"shares_per_post"`
	ReactionsPerPost     ValueAndPrevious `json:"reactions_per_post"`
	EnabledNotifications Percentage       `json:"enabled_notifications"`
}
