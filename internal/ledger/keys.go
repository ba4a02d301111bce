package ledger

import "github.com/odyssey-erp/microfin/internal/ledger/grouping"

// ByAccountCode groups entries by account code.
func ByAccountCode(e Entry) grouping.Key {
	if e.AccountCode.Code == "" {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.String(e.AccountCode.Code))
}

// ByClient groups entries by client; entries without one share the sentinel.
func ByClient(e Entry) grouping.Key {
	if e.Client == nil || e.Client.ID == "" {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.String(e.Client.ID))
}

// ByBank groups entries by the bank on the parent transaction.
func ByBank(e Entry) grouping.Key {
	if e.Parent.Bank == nil || e.Parent.Bank.Code == "" {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.String(e.Parent.Bank.Code))
}

// ByDate groups entries by the parent transaction date.
func ByDate(e Entry) grouping.Key {
	if e.Parent.Date.IsZero() {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.Date(e.Parent.Date))
}

// ByOfficerMonth groups entries by loan officer and posting month.
func ByOfficerMonth(e Entry) grouping.Key {
	officer := grouping.Null()
	if e.Parent.Officer != nil && e.Parent.Officer.ID != "" {
		officer = grouping.String(e.Parent.Officer.ID)
	}
	month := grouping.Null()
	if !e.Parent.Date.IsZero() {
		month = grouping.Month(e.Parent.Date)
	}
	return grouping.K(officer, month)
}

// ByTransaction groups entries by parent transaction.
func ByTransaction(e Entry) grouping.Key {
	if e.Parent.ID == "" {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.String(e.Parent.ID))
}

// ByKind groups entries by parent transaction kind.
func ByKind(e Entry) grouping.Key {
	if e.Parent.Kind == "" {
		return grouping.K(grouping.Null())
	}
	return grouping.K(grouping.String(string(e.Parent.Kind)))
}

// ByClientLoan groups entries by client and loan cycle.
func ByClientLoan(e Entry) grouping.Key {
	cycle := grouping.Null()
	if e.Cycle != nil {
		cycle = grouping.Int(int64(*e.Cycle))
	}
	return append(ByClient(e), cycle)
}

// ClientLabel resolves a display name for a client group key.
func ClientLabel(entries []Entry) string {
	for _, e := range entries {
		if e.Client != nil && e.Client.Name != "" {
			return e.Client.Name
		}
	}
	return grouping.NotApplicable
}

// AccountLabel resolves "code - description" for an account group.
func AccountLabel(entries []Entry) string {
	for _, e := range entries {
		if e.AccountCode.Description != "" {
			return e.AccountCode.Code + " - " + e.AccountCode.Description
		}
	}
	if len(entries) > 0 {
		return entries[0].AccountCode.Code
	}
	return ""
}
