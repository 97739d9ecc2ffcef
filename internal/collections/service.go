package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-dms/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetRecord(ctx context.Context, id int64) (Record, error)
	UpsertRecord(ctx context.Context, in UpsertInput) (Record, error)
	ListByStatus(ctx context.Context, status Status) ([]Record, error)
	MarkComplete(ctx context.Context, id int64) (Record, error)
}

// SettlementPort posts the accounting entry that settles a completed
// collection. Wired to the journals module.
type SettlementPort interface {
	PostCollectionSettlement(ctx context.Context, rec Record) error
}

// Service coordinates collection operations.
type Service struct {
	repo       RepositoryPort
	settlement SettlementPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, settlement SettlementPort) *Service {
	return &Service{repo: repo, settlement: settlement}
}

// Get retrieves a record by id.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// Upsert publishes a pending receivable for an order balance. Saving the
// same (order, type) twice refreshes the one row.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (Record, error) {
	if in.Type != TypeCredit && in.Type != TypeCheque {
		return Record{}, ErrInvalidType
	}
	rec, err := s.repo.UpsertRecord(ctx, in)
	if err != nil {
		return Record{}, fmt.Errorf("upsert collection: %w", err)
	}
	return rec, nil
}

// ListPending returns all pending receivables, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]Record, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// Complete verifies a pending receivable as collected and posts the
// settlement journal. Verification is a manager action.
func (s *Service) Complete(ctx context.Context, actor shared.Actor, id int64) (Record, error) {
	if actor.Role != shared.RoleManager {
		return Record{}, shared.ErrForbidden
	}
	rec, err := s.repo.MarkComplete(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if s.settlement != nil {
		if err := s.settlement.PostCollectionSettlement(ctx, rec); err != nil {
			return Record{}, fmt.Errorf("post settlement for collection %d: %w", id, err)
		}
	}
	return rec, nil
}

var agingBounds = []struct {
	label string
	days  int
}{
	{"0-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"90+", 1 << 30},
}

// Aging groups pending receivables into day buckets measured from
// record creation to asOf.
func (s *Service) Aging(ctx context.Context, asOf time.Time) ([]AgingBucket, error) {
	pending, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	buckets := make([]AgingBucket, len(agingBounds))
	for i, b := range agingBounds {
		buckets[i].Label = b.label
	}
	for _, rec := range pending {
		age := int(asOf.Sub(rec.CreatedAt).Hours() / 24)
		for i, b := range agingBounds {
			if age <= b.days {
				buckets[i].Count++
				buckets[i].Total += rec.Amount
				break
			}
		}
	}
	return buckets, nil
}
