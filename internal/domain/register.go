package domain

// RegisterStatusOf derives the drawer state from the full transaction
// history. The balance is never stored anywhere; it is always the sum of
// the amounts in the current cycle, starting at the most recent opening.
// A closing row carries amount 0, so the balance survives across cycles
// until the next opening resets it to the counted float.
func RegisterStatusOf(entries []RegisterTransaction) RegisterStatus {
	var status RegisterStatus
	for _, e := range entries {
		switch e.Type {
		case RegisterOpening:
			openedAt := e.CreatedAt
			status.Open = true
			status.OpenedAt = &openedAt
			status.BalanceCents = e.AmountCents
			status.Transactions = 1
		case RegisterClosing:
			status.Open = false
			status.OpenedAt = nil
			if status.Transactions > 0 {
				status.Transactions++
			}
		default:
			if status.Open {
				status.BalanceCents += e.AmountCents
				status.Transactions++
			}
		}
	}
	return status
}
