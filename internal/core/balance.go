package core

import "github.com/shopspring/decimal"

// AccountBalance is the initial balance plus incomes minus expenses of the
// transactions referencing the account.
func AccountBalance(a Account, txs []Transaction) decimal.Decimal {
	balance := a.InitialBalance
	for _, t := range txs {
		if t.AccountID == a.ID {
			balance = balance.Add(t.SignedAmount())
		}
	}
	return balance
}

// AccountBalances computes every account balance in a single pass over txs.
// Transactions referencing unknown accounts are ignored.
func AccountBalances(accounts []Account, txs []Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a.InitialBalance
	}
	for _, t := range txs {
		if b, ok := out[t.AccountID]; ok {
			out[t.AccountID] = b.Add(t.SignedAmount())
		}
	}
	return out
}

// PortfolioTotal sums every account balance converted to the reference currency.
func PortfolioTotal(accounts []Account, txs []Transaction, rates RateTable) decimal.Decimal {
	balances := AccountBalances(accounts, txs)
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(Convert(balances[a.ID], a.Currency, rates))
	}
	return total
}
