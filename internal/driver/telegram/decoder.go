package telegram

import (
	"fmt"
	"time"

	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

// DecodeBoost maps one gotd boost into a domain booster.
func DecodeBoost(boost tg.Boost) (pulse.Booster, error) {
	if boost.ID == "" {
		return pulse.Booster{}, fmt.Errorf("decode boost: empty id")
	}

	booster := pulse.Booster{
		ID:         boost.ID,
		Kind:       boostKind(boost),
		Multiplier: 1,
		Date:       unixTime(boost.Date),
		Expires:    unixTime(boost.Expires),
	}
	if userID, ok := boost.GetUserID(); ok {
		booster.UserID = userID
	}
	if messageID, ok := boost.GetGiveawayMsgID(); ok {
		booster.GiveawayMessageID = messageID
	}
	if slug, ok := boost.GetUsedGiftSlug(); ok {
		booster.GiftSlug = slug
	}
	if multiplier, ok := boost.GetMultiplier(); ok && multiplier > 0 {
		booster.Multiplier = multiplier
	}
	if stars, ok := boost.GetStars(); ok {
		booster.Stars = stars
	}

	return booster, nil
}

func boostKind(boost tg.Boost) pulse.BoostKind {
	switch {
	case boost.Unclaimed:
		return pulse.BoostKindUnclaimed
	case boost.Giveaway:
		return pulse.BoostKindGiveaway
	case boost.Gift:
		return pulse.BoostKindGift
	default:
		return pulse.BoostKindRegular
	}
}

// DecodeStarsTransaction maps one gotd stars transaction into a revenue entry.
func DecodeStarsTransaction(transaction tg.StarsTransaction) (pulse.RevenueTransaction, error) {
	if transaction.ID == "" {
		return pulse.RevenueTransaction{}, fmt.Errorf("decode stars transaction: empty id")
	}

	amount, currency, err := starsAmount(transaction)
	if err != nil {
		return pulse.RevenueTransaction{}, fmt.Errorf("decode stars transaction %s: %w", transaction.ID, err)
	}

	return revenueTransaction(transaction, amount, currency), nil
}

func revenueTransaction(transaction tg.StarsTransaction, amount int64, currency pulse.Currency) pulse.RevenueTransaction {
	decoded := pulse.RevenueTransaction{
		ID:           transaction.ID,
		Amount:       amount,
		Currency:     currency,
		Counterparty: counterparty(transaction.Peer),
		Title:        transaction.Title,
		Description:  transaction.Description,
		Date:         unixTime(transaction.Date),
		Pending:      transaction.Pending,
		Failed:       transaction.Failed,
		URL:          transaction.TransactionURL,
	}

	switch {
	case transaction.Refund:
		decoded.Kind = pulse.TransactionRefund
	case decoded.Counterparty == pulse.CounterpartyFragment && amount < 0:
		decoded.Kind = pulse.TransactionWithdrawal
	default:
		decoded.Kind = pulse.TransactionProceeds
	}

	return decoded
}

// starsAmount reads the signed amount and its currency.
func starsAmount(transaction tg.StarsTransaction) (int64, pulse.Currency, error) {
	switch amount := transaction.Amount.(type) {
	case *tg.StarsAmount:
		return amount.Amount, pulse.CurrencyStars, nil
	case *tg.StarsTonAmount:
		return amount.Amount, pulse.CurrencyTON, nil
	default:
		return 0, "", fmt.Errorf("amount %T: %w", transaction.Amount, pulse.ErrUnsupportedItem)
	}
}

func counterparty(peer tg.StarsTransactionPeerClass) pulse.Counterparty {
	switch peer.(type) {
	case *tg.StarsTransactionPeer:
		return pulse.CounterpartyPeer
	case *tg.StarsTransactionPeerFragment:
		return pulse.CounterpartyFragment
	case *tg.StarsTransactionPeerAds:
		return pulse.CounterpartyAds
	case *tg.StarsTransactionPeerAppStore:
		return pulse.CounterpartyAppStore
	case *tg.StarsTransactionPeerPlayMarket:
		return pulse.CounterpartyPlay
	case *tg.StarsTransactionPeerPremiumBot:
		return pulse.CounterpartyPremium
	case *tg.StarsTransactionPeerAPI:
		return pulse.CounterpartyAPI
	default:
		return pulse.CounterpartyUnknown
	}
}

// DecodeSponsoredMessage maps one gotd sponsored message into a domain ad.
func DecodeSponsoredMessage(message tg.SponsoredMessage) (pulse.AdMessage, error) {
	if len(message.RandomID) == 0 {
		return pulse.AdMessage{}, fmt.Errorf("decode sponsored message: empty random id")
	}

	ad := pulse.AdMessage{
		OpaqueID:    pulse.OpaqueIDFromRandomID(message.RandomID),
		Title:       message.Title,
		Text:        message.Message,
		URL:         message.URL,
		ButtonText:  message.ButtonText,
		Recommended: message.Recommended,
		CanReport:   message.CanReport,
	}
	if info, ok := message.GetSponsorInfo(); ok {
		ad.SponsorInfo = info
	}
	if info, ok := message.GetAdditionalInfo(); ok {
		ad.AdditionalInfo = info
	}

	return ad, nil
}

// DecodeBroadcastStats maps the summary block of broadcast statistics.
func DecodeBroadcastStats(stats *tg.StatsBroadcastStats) (pulse.ChannelStats, error) {
	if stats == nil {
		return pulse.ChannelStats{}, fmt.Errorf("decode broadcast stats: nil stats")
	}

	return pulse.ChannelStats{
		PeriodStart:          unixTime(stats.Period.MinDate),
		PeriodEnd:            unixTime(stats.Period.MaxDate),
		Followers:            absValue(stats.Followers),
		ViewsPerPost:         absValue(stats.ViewsPerPost),
		SharesPerPost:        absValue(stats.SharesPerPost),
		ReactionsPerPost:     absValue(stats.ReactionsPerPost),
		EnabledNotifications: pulse.Percentage{Part: stats.EnabledNotifications.Part, Total: stats.EnabledNotifications.Total},
	}, nil
}

func absValue(value tg.StatsAbsValueAndPrev) pulse.ValueAndPrevious {
	return pulse.ValueAndPrevious{Current: value.Current, Previous: value.Previous}
}

func unixTime(seconds int) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}

	return time.Unix(int64(seconds), 0).UTC()
}
