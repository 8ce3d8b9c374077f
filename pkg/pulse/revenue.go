package pulse

import "time"

// Currency identifies the unit of a revenue amount.
type Currency string

const (
	// CurrencyStars is Telegram Stars.
	CurrencyStars Currency = "XTR"
	// CurrencyTON is Toncoin in nanotons.
	CurrencyTON Currency = "TON"
)

// TransactionKind classifies the direction of a revenue transaction.
type TransactionKind string

const (
	// TransactionProceeds is income credited to the channel.
	TransactionProceeds TransactionKind = "proceeds"
	// TransactionWithdrawal is a payout to an external wallet.
	TransactionWithdrawal TransactionKind = "withdrawal"
	// TransactionRefund is money returned to a payer.
	TransactionRefund TransactionKind = "refund"
)

// Counterparty names who the money moved to or from.
type Counterparty string

const (
	CounterpartyUnknown  Counterparty = "unknown"
	CounterpartyPeer     Counterparty = "peer"
	CounterpartyFragment Counterparty = "fragment"
	CounterpartyAds      Counterparty = "ads"
	CounterpartyAppStore Counterparty = "app_store"
	CounterpartyPlay     Counterparty = "play_market"
	CounterpartyPremium  Counterparty = "premium_bot"
	CounterpartyAPI      Counterparty = "api"
)

// RevenueTransaction is one entry of a channel revenue history.
type RevenueTransaction struct {
	// ID is the server transaction identifier.
	ID string `json:"id"`
	// Kind classifies the transaction direction.
	Kind TransactionKind `json:"kind"`
	// Amount is signed in the smallest currency unit: negative for money leaving.
	Amount int64 `json:"amount"`
	// Currency is the unit of Amount.
	Currency Currency `json:"currency"`
	// Counterparty names the other side of the transaction.
	Counterparty Counterparty `json:"counterparty"`
	// Title is the server provided title, when any.
	Title string `json:"title,omitempty"`
	// Description is the server provided description, when any.
	Description string `json:"description,omitempty"`
	// Date is when the transaction happened.
	Date time.Time `json:"date"`
	// Pending is set for withdrawals that have not completed yet.
	Pending bool `json:"pending,omitempty"`
	// Failed is set for withdrawals that did not complete.
	Failed bool `json:"failed,omitempty"`
	// URL points to an external explorer entry, when any.
	URL string `json:"url,omitempty"`
}

// Settled reports whether the transaction affects the balance.
func (t RevenueTransaction) Settled() bool {
	return !t.Pending && !t.Failed
}
