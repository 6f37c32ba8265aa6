package service

import (
	"context"
	"strings"

	"github.com/ironwake/broadside/internal/era"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/internal/purchase/domain"
	"github.com/ironwake/broadside/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Catalog        *era.Catalog
	EntitlementSvc entitlementdomain.Service
	Entitlements   entitlementdomain.Repository
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	catalog        *era.Catalog
	entitlementSvc entitlementdomain.Service
	entitlements   entitlementdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("purchase.service"),
		catalog:        p.Catalog,
		entitlementSvc: p.EntitlementSvc,
		entitlements:   p.Entitlements,
	}
}

func (s *Service) Complete(ctx context.Context, req domain.CompleteRequest) (*domain.Result, error) {
	if req.AccountID == 0 {
		return nil, entitlementdomain.ErrInvalidAccount
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, domain.ErrInvalidReference
	}

	identifier := strings.TrimSpace(req.EraIdentifier)
	if _, err := s.catalog.Get(identifier); err != nil {
		return nil, domain.ErrInvalidEra
	}

	accountID := req.AccountID
	row, err := s.entitlementSvc.Issue(ctx, entitlementdomain.IssueRequest{
		RightsType:        entitlementdomain.RightsTypeEra,
		RightsValue:       identifier,
		UsesRemaining:     entitlementdomain.UnlimitedUses,
		AccountID:         &accountID,
		PurchaseReference: &reference,
	})
	if err != nil {
		// Provider webhooks retry; a duplicate reference means the
		// purchase is already on file.
		if db.IsDuplicateKeyErr(err) {
			return &domain.Result{EraIdentifier: identifier, AlreadyRecorded: true}, nil
		}
		return nil, err
	}

	s.log.Info("recorded purchase",
		zap.String("row_id", row.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("era", identifier),
	)
	return &domain.Result{RowID: row.ID, EraIdentifier: identifier}, nil
}
