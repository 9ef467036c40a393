package ledger

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryAssets      Category = "assets"
	CategoryLiabilities Category = "liabilities"
	CategoryEquity      Category = "equity"
	CategoryRevenue     Category = "revenue"
	CategoryExpenses    Category = "expenses"
)

var AllCategories = []Category{
	CategoryAssets,
	CategoryLiabilities,
	CategoryEquity,
	CategoryRevenue,
	CategoryExpenses,
}

// NormalSide returns the side on which accounts of the category
// increase. Assets and expenses are debit-normal; liabilities, equity
// and revenue are credit-normal.
func NormalSide(cat Category) Side {
	switch cat {
	case CategoryAssets, CategoryExpenses:
		return SideDebit
	default:
		return SideCredit
	}
}

// AccountTypeDef describes one entry in the account type registry.
// PerEntity types hold one account per entity (e.g. one creator_balance
// per creator); the rest are singletons within a ledger. Strict types
// may never let available funds (balance - held) go negative.
type AccountTypeDef struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	PerEntity bool     `json:"per_entity"`
	Strict    bool     `json:"strict"`
}

// AccountTypes is the registry of account types a ledger can post to.
// Accounts are created lazily on first reference, so this registry is
// the chart of accounts.
var AccountTypes = map[string]AccountTypeDef{
	"cash":                {Type: "cash", Name: "Cash", Category: CategoryAssets, Strict: true},
	"accounts_receivable": {Type: "accounts_receivable", Name: "Accounts Receivable", Category: CategoryAssets},
	"accounts_payable":    {Type: "accounts_payable", Name: "Accounts Payable", Category: CategoryLiabilities},
	"creator_balance":     {Type: "creator_balance", Name: "Creator Balance", Category: CategoryLiabilities, PerEntity: true, Strict: true},
	"tax_withheld":        {Type: "tax_withheld", Name: "Tax Withheld", Category: CategoryLiabilities},
	"equity":              {Type: "equity", Name: "Owner Equity", Category: CategoryEquity},
	"revenue":             {Type: "revenue", Name: "Revenue", Category: CategoryRevenue},
	"platform_fees":       {Type: "platform_fees", Name: "Platform Fees", Category: CategoryRevenue},
	"refunds":             {Type: "refunds", Name: "Refunds", Category: CategoryExpenses},
	"expense":             {Type: "expense", Name: "Operating Expenses", Category: CategoryExpenses},
}

// TypeDef resolves an account type against the registry.
func TypeDef(accountType string) (AccountTypeDef, error) {
	def, ok := AccountTypes[accountType]
	if !ok {
		return AccountTypeDef{}, fmt.Errorf("%w: %s", ErrUnknownAccountType, accountType)
	}
	return def, nil
}

// Account is one row per (ledger, account type, entity). Balance and
// HeldAmount are running values maintained exclusively by the
// transaction engine; everything else reads them.
type Account struct {
	ID         int64     `json:"id"`
	LedgerID   string    `json:"ledger_id"`
	Type       string    `json:"account_type"`
	EntityID   string    `json:"entity_id,omitempty"`
	Category   Category  `json:"category"`
	Balance    int64     `json:"balance"`
	HeldAmount int64     `json:"held_amount"`
	Metadata   *Metadata `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Available is the only amount payable out of the account.
func (a *Account) Available() int64 {
	return a.Balance - a.HeldAmount
}

// ValidateRef checks an (account type, entity) reference against the registry.
func ValidateRef(accountType, entityID string) error {
	def, err := TypeDef(accountType)
	if err != nil {
		return err
	}
	if def.PerEntity && entityID == "" {
		return fmt.Errorf("%w: %s", ErrEntityRequired, accountType)
	}
	if !def.PerEntity && entityID != "" {
		return fmt.Errorf("%w: %s", ErrEntityNotAllowed, accountType)
	}
	return nil
}
