package revenue

import (
	"sort"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

// Totals aggregates settled transactions of one currency. Amounts are absolute
// except Net, which is the signed sum.
type Totals struct {
	Incoming int64 `json:"incoming"`
	Outgoing int64 `json:"outgoing"`
	Refunded int64 `json:"refunded"`
	Net      int64 `json:"net"`
	Count    int   `json:"count"`
}

// Summary aggregates a transaction history.
type Summary struct {
	Currencies map[pulse.Currency]Totals `json:"currencies"`
	// Pending counts transactions that did not settle yet.
	Pending int `json:"pending"`
	// Failed counts transactions that will never settle.
	Failed int `json:"failed"`
}

// Summarize aggregates the transactions accumulated in state.
func Summarize(state livecache.State[pulse.RevenueTransaction]) Summary {
	return SummarizeItems(state.Items)
}

// SummarizeItems aggregates settled transactions per currency. Pending and
// failed entries are only counted.
func SummarizeItems(transactions []pulse.RevenueTransaction) Summary {
	summary := Summary{Currencies: make(map[pulse.Currency]Totals)}
	for _, transaction := range transactions {
		switch {
		case transaction.Failed:
			summary.Failed++
			continue
		case transaction.Pending:
			summary.Pending++
			continue
		}

		totals := summary.Currencies[transaction.Currency]
		magnitude := abs(transaction.Amount)
		switch {
		case transaction.Kind == pulse.TransactionRefund:
			totals.Refunded += magnitude
		case transaction.Kind == pulse.TransactionWithdrawal, transaction.Amount < 0:
			totals.Outgoing += magnitude
		default:
			totals.Incoming += magnitude
		}
		totals.Net += transaction.Amount
		totals.Count++
		summary.Currencies[transaction.Currency] = totals
	}

	return summary
}

// SortedCurrencies returns the currencies present in the summary in stable order.
func (s Summary) SortedCurrencies() []pulse.Currency {
	currencies := make([]pulse.Currency, 0, len(s.Currencies))
	for currency := range s.Currencies {
		currencies = append(currencies, currency)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	return currencies
}

func abs(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}
