package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind identifies the document type that owns a posting.
type TransactionKind string

const (
	KindLoanRelease     TransactionKind = "loan_release"
	KindAcknowledgement TransactionKind = "acknowledgement"
	KindRelease         TransactionKind = "release"
	KindDamayanFund     TransactionKind = "damayan_fund"
	KindEmergencyLoan   TransactionKind = "emergency_loan"
	KindExpenseVoucher  TransactionKind = "expense_voucher"
	KindJournalVoucher  TransactionKind = "journal_voucher"
)

// AccountCode references a chart of accounts node.
type AccountCode struct {
	Code        string
	Description string
}

// Client is the customer an entry is attributed to.
type Client struct {
	ID   string
	Name string
}

// Officer is the loan officer responsible for the parent transaction.
type Officer struct {
	ID   string
	Name string
}

// BankRef carries check and bank metadata printed on vouchers.
type BankRef struct {
	Code      string
	Name      string
	CheckNo   string
	CheckDate *time.Time
}

// ParentTransaction is the document owning a set of entries.
type ParentTransaction struct {
	ID      string
	Kind    TransactionKind
	Code    string
	Date    time.Time
	Bank    *BankRef
	Officer *Officer
}

// RawEntry is one posting line as supplied by the data source. Amounts may be
// absent; absent means zero.
type RawEntry struct {
	AccountCode AccountCode
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	Client      *Client
	Parent      ParentTransaction
	Cycle       *int
}

// Entry is a normalized posting line safe to sum.
type Entry struct {
	Line          int
	AccountCode   AccountCode
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	DebitPresent  bool
	CreditPresent bool
	Signed        decimal.Decimal
	Client        *Client
	Parent        ParentTransaction
	Cycle         *int
}

// DebitAmount satisfies totals.Posting.
func (e Entry) DebitAmount() decimal.Decimal { return e.Debit }

// CreditAmount satisfies totals.Posting.
func (e Entry) CreditAmount() decimal.Decimal { return e.Credit }

// Active returns the amount on the active side of the entry.
func (e Entry) Active() decimal.Decimal {
	return e.Signed.Abs()
}

// ClientID returns the client identifier or an empty string.
func (e Entry) ClientID() string {
	if e.Client == nil {
		return ""
	}
	return e.Client.ID
}

// Totals is a debit/credit pair.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Add returns the sum of both totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{Debit: t.Debit.Add(o.Debit), Credit: t.Credit.Add(o.Credit)}
}

// AddEntry accumulates an entry's columns.
func (t Totals) AddEntry(debit, credit decimal.Decimal) Totals {
	return Totals{Debit: t.Debit.Add(debit), Credit: t.Credit.Add(credit)}
}

// Net returns debit minus credit.
func (t Totals) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// Equal compares both columns exactly.
func (t Totals) Equal(o Totals) bool {
	return t.Debit.Equal(o.Debit) && t.Credit.Equal(o.Credit)
}
