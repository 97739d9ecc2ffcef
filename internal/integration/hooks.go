package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-dms/meridian/internal/accounting/accounts"
	"github.com/meridian-dms/meridian/internal/accounting/journals"
	"github.com/meridian-dms/meridian/internal/collections"
	"github.com/meridian-dms/meridian/internal/orders"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostJournal(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
}

// AccountResolver looks up chart-of-accounts rows by code.
type AccountResolver interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Hooks wires domain events from the operational modules into the
// general ledger. Source ids are derived deterministically from the
// originating document, so re-emitting an event lands on the source
// link's unique constraint and is absorbed as a no-op.
type Hooks struct {
	ledger   Ledger
	accounts AccountResolver
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, accounts AccountResolver) *Hooks {
	return &Hooks{ledger: ledger, accounts: accounts}
}

func (h *Hooks) resolveAccount(ctx context.Context, code string) (int64, error) {
	account, err := h.accounts.GetByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("resolve account %s: %w", code, err)
	}
	return account.ID, nil
}

func (h *Hooks) post(ctx context.Context, input journals.PostingInput) error {
	if input.SourceID == uuid.Nil {
		return errors.New("integration: source id required")
	}
	_, err := h.ledger.PostJournal(ctx, input)
	if errors.Is(err, journals.ErrSourceAlreadyLinked) {
		return nil
	}
	return err
}

// HandleOrderDelivered posts the revenue and cost entries for a
// finalized delivery: AR against sales for the order total, COGS
// against inventory for the cost of the fulfilled lines.
func (h *Hooks) HandleOrderDelivered(ctx context.Context, evt orders.DeliveredEvent) error {
	if h == nil || h.ledger == nil || h.accounts == nil {
		return nil
	}
	if evt.DeliveredAt.IsZero() {
		return errors.New("integration: delivery date required")
	}
	total := round2(evt.Total)
	cost := round2(evt.CostTotal)
	if total == 0 && cost == 0 {
		return nil
	}
	arAccount, err := h.resolveAccount(ctx, accounts.CodeAccountsReceivable)
	if err != nil {
		return err
	}
	salesAccount, err := h.resolveAccount(ctx, accounts.CodeSalesRevenue)
	if err != nil {
		return err
	}
	cogsAccount, err := h.resolveAccount(ctx, accounts.CodeCOGS)
	if err != nil {
		return err
	}
	inventoryAccount, err := h.resolveAccount(ctx, accounts.CodeInventory)
	if err != nil {
		return err
	}
	lines := make([]journals.PostingLineInput, 0, 4)
	if total > 0 {
		lines = append(lines,
			journals.PostingLineInput{AccountID: arAccount, Debit: total},
			journals.PostingLineInput{AccountID: salesAccount, Credit: total},
		)
	}
	if cost > 0 {
		lines = append(lines,
			journals.PostingLineInput{AccountID: cogsAccount, Debit: cost},
			journals.PostingLineInput{AccountID: inventoryAccount, Credit: cost},
		)
	}
	if len(lines) == 0 {
		return nil
	}
	input := journals.PostingInput{
		Date:         evt.DeliveredAt,
		SourceModule: "ORDERS.DELIVERY",
		SourceID:     uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("ORDER:%d", evt.OrderID))),
		Memo:         fmt.Sprintf("Delivery %s", evt.Number),
		PostedBy:     evt.ActorID,
		Lines:        lines,
	}
	return h.post(ctx, input)
}

// PostCollectionSettlement posts cash against the receivable account a
// verified collection settles.
func (h *Hooks) PostCollectionSettlement(ctx context.Context, rec collections.Record) error {
	if h == nil || h.ledger == nil || h.accounts == nil {
		return nil
	}
	amount := round2(rec.Amount)
	if amount == 0 {
		return nil
	}
	receivableCode := accounts.CodeAccountsReceivable
	if rec.Type == collections.TypeCheque {
		receivableCode = accounts.CodeChequesReceivable
	}
	cashAccount, err := h.resolveAccount(ctx, accounts.CodeCash)
	if err != nil {
		return err
	}
	receivableAccount, err := h.resolveAccount(ctx, receivableCode)
	if err != nil {
		return err
	}
	settledAt := rec.UpdatedAt
	if rec.CompletedAt != nil {
		settledAt = *rec.CompletedAt
	}
	input := journals.PostingInput{
		Date:         settledAt,
		SourceModule: "COLLECTIONS.SETTLEMENT",
		SourceID:     uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("COLLECTION:%d:%s", rec.OrderID, rec.Type))),
		Memo:         fmt.Sprintf("Collection settlement order %d (%s)", rec.OrderID, rec.Type),
		Lines: []journals.PostingLineInput{
			{AccountID: cashAccount, Debit: amount},
			{AccountID: receivableAccount, Credit: amount},
		},
	}
	return h.post(ctx, input)
}

var _ orders.IntegrationHandler = (*Hooks)(nil)
var _ collections.SettlementPort = (*Hooks)(nil)
