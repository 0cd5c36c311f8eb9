package b2b

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/pagination"
)

// PriceListService manages group price lists.
type PriceListService interface {
	Create(ctx context.Context, input CreatePriceListInput) (*models.PriceList, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PriceList, error)
	List(ctx context.Context, params ListPriceListsParams) (*PriceListPage, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.PriceList, error)
	ActiveFor(ctx context.Context, group enums.CustomerGroup, productID uuid.UUID, now time.Time) (*models.PriceList, *models.PriceListEntry, error)
}

// ProductLookup reports whether a product exists. Optional on the service.
type ProductLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CreatePriceListInput describes a new price list.
type CreatePriceListInput struct {
	Name          string                `json:"name" validate:"required,max=200"`
	CustomerGroup enums.CustomerGroup   `json:"customer_group" validate:"required"`
	ValidFrom     time.Time             `json:"valid_from" validate:"required"`
	ValidUntil    *time.Time            `json:"valid_until"`
	Entries       []PriceListEntryInput `json:"entries" validate:"required,min=1,dive"`
}

// PriceListEntryInput is one product override.
type PriceListEntryInput struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	B2BPrice        decimal.Decimal `json:"b2b_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ListPriceListsParams filters the price list listing.
type ListPriceListsParams struct {
	Group      *enums.CustomerGroup
	ActiveOnly bool
	Page       pagination.Params
}

// PriceListPage is one page of price lists.
type PriceListPage struct {
	Items []models.PriceList `json:"items"`
	Page  pagination.Page    `json:"page"`
}

type priceListService struct {
	repo     PriceListRepository
	products ProductLookup
	notifier notifications.Notifier
	logg     *logger.Logger
}

// PriceListServiceParams wires the price list service. Products and Notifier are optional.
type PriceListServiceParams struct {
	Repository PriceListRepository
	Products   ProductLookup
	Notifier   notifications.Notifier
	Logger     *logger.Logger
}

// NewPriceListService builds a price list service.
func NewPriceListService(params PriceListServiceParams) (PriceListService, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("price list repository required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Discard{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &priceListService{
		repo:     params.Repository,
		products: params.Products,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *priceListService) Create(ctx context.Context, input CreatePriceListInput) (*models.PriceList, error) {
	if err := validatePriceListInput(input); err != nil {
		return nil, err
	}
	if s.products != nil {
		if err := s.ensureProducts(ctx, input.Entries); err != nil {
			return nil, err
		}
	}

	list := &models.PriceList{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(input.Name),
		CustomerGroup: input.CustomerGroup,
		ValidFrom:     input.ValidFrom.UTC(),
		IsActive:      true,
		Entries:       make([]models.PriceListEntry, 0, len(input.Entries)),
	}
	if input.ValidUntil != nil {
		until := input.ValidUntil.UTC()
		list.ValidUntil = &until
	}
	for _, entry := range input.Entries {
		list.Entries = append(list.Entries, models.PriceListEntry{
			ProductID:       entry.ProductID,
			B2BPrice:        entry.B2BPrice,
			DiscountPercent: entry.DiscountPercent,
		})
	}

	if err := s.repo.Create(ctx, list); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create price list")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"price_list_id":  list.ID.String(),
		"customer_group": string(list.CustomerGroup),
		"entries":        len(list.Entries),
	})
	s.logg.Info(logCtx, "price list created")

	s.notifier.Notify(ctx, notifications.Message{
		Type:  enums.NotificationTypePriceListUpdate,
		Title: "Price list published",
		Body:  fmt.Sprintf("%s now applies to %s customers", list.Name, list.CustomerGroup),
	})
	return list, nil
}

func (s *priceListService) Get(ctx context.Context, id uuid.UUID) (*models.PriceList, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list id required")
	}
	list, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price list not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price list")
	}
	return list, nil
}

func (s *priceListService) List(ctx context.Context, params ListPriceListsParams) (*PriceListPage, error) {
	if params.Group != nil && !params.Group.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid customer group %q", *params.Group)
	}
	page := params.Page.Normalize()
	rows, err := s.repo.List(ctx, listPriceListsParams{
		Group:      params.Group,
		ActiveOnly: params.ActiveOnly,
		Limit:      pagination.LimitWithBuffer(page.Limit),
		Offset:     page.Offset,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list price lists")
	}
	items, meta := pagination.Trim(rows, page)
	if items == nil {
		items = []models.PriceList{}
	}
	return &PriceListPage{Items: items, Page: meta}, nil
}

func (s *priceListService) Deactivate(ctx context.Context, id uuid.UUID) (*models.PriceList, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list id required")
	}
	found, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate price list")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price list not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "price_list_id", id.String()), "price list deactivated")
	return s.Get(ctx, id)
}

// ActiveFor returns the list and entry that price the product for the group at
// now. When several lists qualify the one with the latest ValidFrom wins. Both
// results are nil when nothing applies.
func (s *priceListService) ActiveFor(ctx context.Context, group enums.CustomerGroup, productID uuid.UUID, now time.Time) (*models.PriceList, *models.PriceListEntry, error) {
	lists, err := s.repo.ListActiveForProduct(ctx, group, productID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active price lists")
	}
	list, entry := selectActiveEntry(lists, productID, now)
	return list, entry, nil
}

func selectActiveEntry(lists []models.PriceList, productID uuid.UUID, now time.Time) (*models.PriceList, *models.PriceListEntry) {
	var (
		bestList  *models.PriceList
		bestEntry *models.PriceListEntry
	)
	for i := range lists {
		list := &lists[i]
		if !list.ActiveAt(now) {
			continue
		}
		if bestList != nil && !list.ValidFrom.After(bestList.ValidFrom) {
			continue
		}
		for j := range list.Entries {
			if list.Entries[j].ProductID == productID {
				bestList = list
				bestEntry = &list.Entries[j]
				break
			}
		}
	}
	return bestList, bestEntry
}

func (s *priceListService) ensureProducts(ctx context.Context, entries []PriceListEntryInput) error {
	for _, entry := range entries {
		if _, err := s.products.FindByID(ctx, entry.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown product %s", entry.ProductID).
					WithDetails(map[string]any{"product_id": entry.ProductID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
	}
	return nil
}

func validatePriceListInput(input CreatePriceListInput) error {
	var errs error
	if strings.TrimSpace(input.Name) == "" {
		errs = multierr.Append(errs, errors.New("name is required"))
	}
	if !input.CustomerGroup.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("invalid customer group %q", input.CustomerGroup))
	}
	if input.ValidFrom.IsZero() {
		errs = multierr.Append(errs, errors.New("valid_from is required"))
	}
	if input.ValidUntil != nil && !input.ValidUntil.After(input.ValidFrom) {
		errs = multierr.Append(errs, errors.New("valid_until must be after valid_from"))
	}
	if len(input.Entries) == 0 {
		errs = multierr.Append(errs, errors.New("at least one entry is required"))
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Entries))
	for i, entry := range input.Entries {
		if entry.ProductID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d]: product_id is required", i))
			continue
		}
		if _, dup := seen[entry.ProductID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d]: duplicate product %s", i, entry.ProductID))
		}
		seen[entry.ProductID] = struct{}{}
		if entry.B2BPrice.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d]: b2b_price must not be negative", i))
		}
		if entry.DiscountPercent.IsNegative() || entry.DiscountPercent.GreaterThan(hundred) {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d]: discount_percent must be within [0, 100]", i))
		}
	}

	if errs == nil {
		return nil
	}
	problems := multierr.Errors(errs)
	messages := make([]string, 0, len(problems))
	for _, problem := range problems {
		messages = append(messages, problem.Error())
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid price list").
		WithDetails(map[string]any{"errors": messages})
}
