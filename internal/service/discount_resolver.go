package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

// Discount resolution outcomes.
const (
	DiscountSourceReference = "REFERENCE"
	DiscountSourceLiteral   = "LITERAL"
	DiscountSourceNone      = "NONE"
)

var hundred = decimal.NewFromInt(100)

type discountLookup interface {
	FindByID(ctx context.Context, id string) (*models.Discount, error)
}

// DiscountScope identifies where a discount is being applied. StudentID is empty for
// course level resolution.
type DiscountScope struct {
	CourseID  string
	StudentID string
}

// DiscountResolution is the percentage selected for one discount source.
type DiscountResolution struct {
	Percentage decimal.Decimal `json:"percentage"`
	Source     string          `json:"source"`
}

// DiscountResolver turns a discount reference or literal into a percentage.
type DiscountResolver struct {
	discounts discountLookup
	strict    bool
	now       func() time.Time
	logger    *zap.Logger
}

// NewDiscountResolver builds a resolver. In strict mode a reference that cannot be honoured
// fails instead of falling back to the literal percentage.
func NewDiscountResolver(discounts discountLookup, strict bool, logger *zap.Logger) *DiscountResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountResolver{discounts: discounts, strict: strict, now: time.Now, logger: logger}
}

// Resolve picks the referenced discount when it applies, otherwise the literal, otherwise 0.
func (r *DiscountResolver) Resolve(ctx context.Context, source models.DiscountSource, scope DiscountScope) (DiscountResolution, error) {
	if source.Percentage.Valid {
		if err := validatePercentage(source.Percentage.Decimal); err != nil {
			return DiscountResolution{}, err
		}
	}

	if source.DiscountID != nil && *source.DiscountID != "" {
		discount, reason, err := r.lookup(ctx, *source.DiscountID, scope)
		if err != nil {
			return DiscountResolution{}, err
		}
		if reason == "" {
			return DiscountResolution{Percentage: models.RoundMoney(discount.Percentage), Source: DiscountSourceReference}, nil
		}
		if r.strict {
			return DiscountResolution{}, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrDiscountUnavailable, "discount "+*source.DiscountID+" "+reason),
				map[string]interface{}{"discount_id": *source.DiscountID, "reason": reason},
			)
		}
		r.logger.Warn("discount reference ignored",
			zap.String("discount_id", *source.DiscountID),
			zap.String("reason", reason),
			zap.String("course_id", scope.CourseID),
		)
	}

	if source.Percentage.Valid {
		return DiscountResolution{Percentage: models.RoundMoney(source.Percentage.Decimal), Source: DiscountSourceLiteral}, nil
	}
	return DiscountResolution{Percentage: decimal.Zero, Source: DiscountSourceNone}, nil
}

// lookup returns the discount and an empty reason when it can be applied in scope.
func (r *DiscountResolver) lookup(ctx context.Context, id string, scope DiscountScope) (*models.Discount, string, error) {
	discount, err := r.discounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "does not exist", nil
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}
	switch {
	case !discount.Active:
		return discount, "is inactive", nil
	case !discount.ValidOn(r.now().UTC()):
		return discount, "is outside its validity window", nil
	case !discount.AppliesToCourse(scope.CourseID):
		return discount, "does not apply to this course", nil
	case scope.StudentID != "" && !discount.AllowsStudent(scope.StudentID):
		return discount, "is not available to this student", nil
	}
	return discount, "", nil
}

func validatePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return appErrors.Clone(appErrors.ErrValidation, "discount percentage must be between 0 and 100")
	}
	return nil
}
