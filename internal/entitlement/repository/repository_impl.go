package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const rowColumns = `id, account_id, rights_type, rights_value, uses_remaining, expires_at,
	created_by_account_id, recipient_email, source_voucher_code, purchase_reference,
	redeemed_at, redeemed_by_account_id, created_at, updated_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, row *domain.EntitlementRow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entitlement_rows (`+rowColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.AccountID,
		row.RightsType,
		row.RightsValue,
		row.UsesRemaining,
		row.ExpiresAt,
		row.CreatedByAccountID,
		row.RecipientEmail,
		row.SourceVoucherCode,
		row.PurchaseReference,
		row.RedeemedAt,
		row.RedeemedByAccountID,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.EntitlementRow, error) {
	var row domain.EntitlementRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+rowColumns+` FROM entitlement_rows WHERE id = ?`, id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindBySourceVoucherCode(ctx context.Context, db *gorm.DB, code string) (*domain.EntitlementRow, error) {
	var row domain.EntitlementRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+rowColumns+` FROM entitlement_rows WHERE source_voucher_code = ?`, code,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindUnredeemedReferral(ctx context.Context, db *gorm.DB, email string) (*domain.EntitlementRow, error) {
	var row domain.EntitlementRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+rowColumns+` FROM entitlement_rows
		 WHERE LOWER(recipient_email) = ?
		   AND created_by_account_id IS NOT NULL
		   AND redeemed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) ActiveEraRows(ctx context.Context, db *gorm.DB, accountID snowflake.ID, identifier string, now time.Time) ([]domain.EntitlementRow, error) {
	var rows []domain.EntitlementRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+rowColumns+` FROM entitlement_rows
		 WHERE account_id = ?
		   AND rights_type = ?
		   AND rights_value = ?
		   AND (uses_remaining = ? OR uses_remaining > 0)
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at ASC`,
		accountID,
		domain.RightsTypeEra,
		identifier,
		domain.UnlimitedUses,
		now,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ActivePassRows(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) ([]domain.EntitlementRow, error) {
	var rows []domain.EntitlementRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+rowColumns+` FROM entitlement_rows
		 WHERE account_id = ?
		   AND rights_type = ?
		   AND (uses_remaining = ? OR uses_remaining > 0)
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at ASC`,
		accountID,
		domain.RightsTypePass,
		domain.UnlimitedUses,
		now,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) PassBalance(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) (domain.PassBalance, error) {
	var result struct {
		Total     int64
		Unlimited int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COALESCE(SUM(CASE WHEN uses_remaining > 0 THEN uses_remaining ELSE 0 END), 0) AS total,
		   COALESCE(SUM(CASE WHEN uses_remaining = ? THEN 1 ELSE 0 END), 0) AS unlimited
		 FROM entitlement_rows
		 WHERE account_id = ?
		   AND rights_type = ?
		   AND (uses_remaining = ? OR uses_remaining > 0)
		   AND (expires_at IS NULL OR expires_at > ?)`,
		domain.UnlimitedUses,
		accountID,
		domain.RightsTypePass,
		domain.UnlimitedUses,
		now,
	).Scan(&result).Error
	if err != nil {
		return domain.PassBalance{}, err
	}
	return domain.PassBalance{Total: result.Total, Unlimited: result.Unlimited > 0}, nil
}

// DecrementUses is the single server-side conditional update everything
// else leans on: the precondition and the decrement are evaluated in one
// statement, never as a read-modify-write pair.
func (r *repo) DecrementUses(ctx context.Context, db *gorm.DB, id snowflake.ID, n int64, now time.Time) (bool, error) {
	if n <= 0 {
		return false, domain.ErrInvalidAmount
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE entitlement_rows
		 SET uses_remaining = uses_remaining - ?, updated_at = ?
		 WHERE id = ?
		   AND uses_remaining >= ?
		   AND (expires_at IS NULL OR expires_at > ?)`,
		n,
		now,
		id,
		n,
		now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ClaimRedemption(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID snowflake.ID, expiresAt *time.Time, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE entitlement_rows
		 SET account_id = ?, redeemed_at = ?, redeemed_by_account_id = ?, expires_at = COALESCE(?, expires_at), updated_at = ?
		 WHERE id = ? AND redeemed_at IS NULL`,
		accountID,
		now,
		accountID,
		expiresAt,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE entitlement_rows
		 SET redeemed_at = ?, redeemed_by_account_id = ?, updated_at = ?
		 WHERE id = ?`,
		now,
		accountID,
		now,
		id,
	).Error
}
