package coa

import (
	"context"
	"sort"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	AccountByID(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	HasJournalLines(ctx context.Context, accountID int64) (bool, error)
	HasChildren(ctx context.Context, accountID int64) (bool, error)
}

// Service coordinates chart of accounts maintenance.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create inserts a new account under an optional parent.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			if _, err := tx.AccountByID(ctx, *in.ParentID); err != nil {
				return err
			}
		}
		var err error
		account, err = tx.InsertAccount(ctx, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// Update renames an account or moves it under a new parent. Moving checks the
// ancestor chain of the new parent so the tree stays acyclic.
func (s *Service) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.AccountByID(ctx, in.ID); err != nil {
			return err
		}
		if in.ParentID != nil {
			if err := ensureNoCycle(ctx, tx, in.ID, *in.ParentID); err != nil {
				return err
			}
		}
		var err error
		account, err = tx.UpdateAccount(ctx, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// Delete removes an account that carries no history. Accounts referenced by
// journal lines or with children cannot be removed, only deactivated.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.AccountByID(ctx, id); err != nil {
			return err
		}
		used, err := tx.HasJournalLines(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrAccountInUse
		}
		hasChildren, err := tx.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrAccountHasChildren
		}
		return tx.DeleteAccount(ctx, id)
	})
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, activeOnly)
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// Tree returns the account hierarchy with children sorted by code. Accounts
// whose parent is missing from the set surface as roots.
func (s *Service) Tree(ctx context.Context) ([]*AccountNode, error) {
	accounts, err := s.repo.ListAccounts(ctx, false)
	if err != nil {
		return nil, err
	}
	nodes := make(map[int64]*AccountNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &AccountNode{Account: a}
	}
	var roots []*AccountNode
	for _, a := range accounts {
		node := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	sortNodes(roots)
	return roots, nil
}

func sortNodes(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// ensureNoCycle walks up from the candidate parent; finding the account being
// moved means the move would create a cycle.
func ensureNoCycle(ctx context.Context, tx TxRepository, accountID, parentID int64) error {
	seen := make(map[int64]struct{})
	for cursor := parentID; ; {
		if cursor == accountID {
			return ErrAccountCycle
		}
		if _, ok := seen[cursor]; ok {
			return ErrAccountCycle
		}
		seen[cursor] = struct{}{}
		parent, err := tx.AccountByID(ctx, cursor)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		cursor = *parent.ParentID
	}
}
