// Package revenue keeps the revenue transaction history of one channel as a
// paginated live cache and summarizes the loaded entries per currency.
package revenue
