package accounts

import (
	"errors"
	"time"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Well-known account codes the order and collection workflows post to.
const (
	CodeInventory          = "1200"
	CodeAccountsReceivable = "1300"
	CodeChequesReceivable  = "1310"
	CodeCash               = "1000"
	CodeSalesRevenue       = "4000"
	CodeCOGS               = "5000"
)

var ErrAccountNotFound = errors.New("accounts: account not found")

// Account models a chart of accounts node.
type Account struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
