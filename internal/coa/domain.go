// Package coa manages the chart of accounts and the control-account
// configuration used by posting flows.
package coa

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance tells which side increases an account.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Valid reports whether the account type is one of the five categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the increasing side for the account type. Assets and
// expenses grow on the debit side, everything else on the credit side.
func (t AccountType) NormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

// Account models a chart of accounts node.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountNode is an account with its resolved children, used by the tree view.
type AccountNode struct {
	Account
	Children []*AccountNode
}

// CreateAccountInput groups fields required to create an account.
type CreateAccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
}

// UpdateAccountInput carries mutable account fields.
type UpdateAccountInput struct {
	ID       int64
	Name     string
	ParentID *int64
	IsActive bool
}

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("coa: account not found")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = errors.New("coa: account code already exists")
	// ErrAccountCycle indicates a parent reassignment would create a cycle.
	ErrAccountCycle = errors.New("coa: parent assignment creates a cycle")
	// ErrAccountInUse indicates the account is referenced by journal lines.
	ErrAccountInUse = errors.New("coa: account referenced by journal lines")
	// ErrAccountHasChildren indicates the account still has child accounts.
	ErrAccountHasChildren = errors.New("coa: account has child accounts")
	// ErrMissingControlAccount indicates an unconfigured posting account.
	ErrMissingControlAccount = errors.New("coa: control account not configured")
)

// Validate ensures create input meets minimum criteria.
func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("coa: account code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("coa: account name required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("coa: unknown account type %q", in.Type)
	}
	return nil
}

// Validate ensures update input meets minimum criteria.
func (in UpdateAccountInput) Validate() error {
	if in.ID == 0 {
		return errors.New("coa: account id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("coa: account name required")
	}
	if in.ParentID != nil && *in.ParentID == in.ID {
		return ErrAccountCycle
	}
	return nil
}

// Control account roles. Posting flows resolve accounts by role rather than
// by hard-coded codes.
const (
	RoleAccountsReceivable = "accounts_receivable"
	RoleSalesRevenue       = "sales_revenue"
	RoleCOGS               = "cogs"
	RoleInventory          = "inventory"
	RoleAccountsPayable    = "accounts_payable"
	RolePurchases          = "purchases"
	RoleCash               = "cash"
	RoleRetainedEarnings   = "retained_earnings"
)

// ControlAccounts holds the configured posting accounts. A zero field means
// the role is not configured.
type ControlAccounts struct {
	AccountsReceivable int64
	SalesRevenue       int64
	COGS               int64
	Inventory          int64
	AccountsPayable    int64
	Purchases          int64
	Cash               int64
	RetainedEarnings   int64
}

// MissingAccountError reports which control-account role is unconfigured.
type MissingAccountError struct {
	Role string
}

func (e *MissingAccountError) Error() string {
	return fmt.Sprintf("coa: control account not configured: %s", e.Role)
}

// Is matches ErrMissingControlAccount so callers can errors.Is on the class.
func (e *MissingAccountError) Is(target error) bool {
	return target == ErrMissingControlAccount
}

// Account resolves the account id configured for the role.
func (c ControlAccounts) Account(role string) (int64, error) {
	var id int64
	switch role {
	case RoleAccountsReceivable:
		id = c.AccountsReceivable
	case RoleSalesRevenue:
		id = c.SalesRevenue
	case RoleCOGS:
		id = c.COGS
	case RoleInventory:
		id = c.Inventory
	case RoleAccountsPayable:
		id = c.AccountsPayable
	case RolePurchases:
		id = c.Purchases
	case RoleCash:
		id = c.Cash
	case RoleRetainedEarnings:
		id = c.RetainedEarnings
	default:
		return 0, fmt.Errorf("coa: unknown control account role %q", role)
	}
	if id == 0 {
		return 0, &MissingAccountError{Role: role}
	}
	return id, nil
}
