package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/pkg/db"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/pagination"
)

const (
	defaultValidityDays = 30
	maxLineItems        = 100
)

// Service drives the quote lifecycle: draft, sent, then accepted, rejected or expired.
type Service interface {
	Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Send(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) (*models.Quote, error)
}

// CustomerLookup loads the customer a quote is addressed to.
type CustomerLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// PriceResolver applies the customer's B2B discounts to a list price.
type PriceResolver interface {
	CalculatePrice(ctx context.Context, customerID, productID uuid.UUID, basePrice decimal.Decimal, quantity int) (*b2b.PriceResolution, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListPricer prices a product configuration before discounts.
type ListPricer interface {
	Price(ctx context.Context, input configurator.PriceInput) (*configurator.PriceResult, error)
}

// CreateQuoteInput describes a new draft quote.
type CreateQuoteInput struct {
	CustomerID   uuid.UUID       `json:"customer_id" validate:"required"`
	Items        []LineItemInput `json:"items" validate:"required,min=1,dive"`
	Notes        *string         `json:"notes"`
	ValidForDays *int            `json:"valid_for_days"`
}

// LineItemInput is one requested product. Without UnitPrice the list price
// comes from the configurator for the given quantity and options.
type LineItemInput struct {
	ProductID   uuid.UUID        `json:"product_id" validate:"required"`
	ProductName string           `json:"product_name"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	PlanID      string           `json:"plan_id"`
	MaterialID  string           `json:"material_id"`
	FeatureID   string           `json:"feature_id"`
	Services    map[string]bool  `json:"services"`
}

// ListParams filters the quote list.
type ListParams struct {
	CustomerID *uuid.UUID
	Status     *enums.QuoteStatus
	Page       pagination.Params
}

// ListResult is one page of quotes.
type ListResult struct {
	Items []models.Quote  `json:"items"`
	Page  pagination.Page `json:"page"`
}

type service struct {
	repo         Repository
	db           txRunner
	customers    CustomerLookup
	resolver     PriceResolver
	pricer       ListPricer
	numbers      NumberSource
	notifier     notifications.Notifier
	logg         *logger.Logger
	taxRate      decimal.Decimal
	validityDays int
	now          func() time.Time
}

// ServiceParams wires the quote service. DB, Pricer, Numbers, Notifier, Logger
// and Now are optional. Without Pricer every line must carry a unit price.
// Without Numbers quotes are numbered by counting this year's quotes. With DB
// the number and the quote are written in one transaction.
type ServiceParams struct {
	Repository   Repository
	DB           txRunner
	Customers    CustomerLookup
	Resolver     PriceResolver
	Pricer       ListPricer
	Numbers      NumberSource
	Notifier     notifications.Notifier
	Logger       *logger.Logger
	TaxRate      decimal.Decimal
	ValidityDays int
	Now          func() time.Time
}

// NewService builds a quote service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if params.TaxRate.IsNegative() || params.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate must be within [0, 1)")
	}

	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Discard{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	validity := params.ValidityDays
	if validity <= 0 {
		validity = defaultValidityDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:         params.Repository,
		db:           params.DB,
		customers:    params.Customers,
		resolver:     params.Resolver,
		pricer:       params.Pricer,
		numbers:      params.Numbers,
		notifier:     notifier,
		logg:         logg,
		taxRate:      params.TaxRate,
		validityDays: validity,
		now:          now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	if len(input.Items) > maxLineItems {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "a quote holds at most %d line items", maxLineItems)
	}
	validity := s.validityDays
	if input.ValidForDays != nil {
		if *input.ValidForDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_for_days must be positive")
		}
		validity = *input.ValidForDays
	}

	customer, err := s.customers.Get(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer is inactive")
	}

	now := s.now().UTC()
	quote := &models.Quote{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Status:     enums.QuoteStatusDraft,
		TaxRate:    s.taxRate,
		ValidUntil: now.AddDate(0, 0, validity),
		Items:      make([]models.QuoteLineItem, 0, len(input.Items)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if input.Notes != nil {
		if notes := strings.TrimSpace(*input.Notes); notes != "" {
			quote.Notes = &notes
		}
	}

	subtotal := decimal.Zero
	for i, line := range input.Items {
		item, err := s.priceLine(ctx, customer.ID, line)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation && typed.Details() == nil {
				typed.WithDetails(map[string]any{"line": i + 1})
			}
			return nil, err
		}
		subtotal = subtotal.Add(item.LineTotal)
		quote.Items = append(quote.Items, item)
	}

	quote.Subtotal = subtotal
	quote.Tax = subtotal.Mul(s.taxRate).Round(2)
	quote.Total = quote.Subtotal.Add(quote.Tax)
	quote.BelowMinimumOrder = subtotal.LessThan(customer.MinOrderAmount)

	err = s.inTx(ctx, func(repo Repository) error {
		number, err := s.nextNumber(ctx, repo, now)
		if err != nil {
			return err
		}
		quote.Number = number
		return repo.Create(ctx, quote)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "quote number already taken, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
	}

	logCtx := s.logg.WithFields(s.logg.WithQuoteID(ctx, quote.ID.String()), map[string]any{
		"customer_id":         customer.ID.String(),
		"number":              quote.Number,
		"lines":               len(quote.Items),
		"total":               quote.Total.StringFixed(2),
		"below_minimum_order": quote.BelowMinimumOrder,
	})
	s.logg.Info(logCtx, "quote created")
	return quote, nil
}

func (s *service) priceLine(ctx context.Context, customerID uuid.UUID, line LineItemInput) (models.QuoteLineItem, error) {
	if line.ProductID == uuid.Nil {
		return models.QuoteLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if line.Quantity <= 0 {
		return models.QuoteLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	name := strings.TrimSpace(line.ProductName)
	var base decimal.Decimal
	switch {
	case line.UnitPrice != nil:
		if line.UnitPrice.IsNegative() {
			return models.QuoteLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
		}
		base = *line.UnitPrice
	case s.pricer != nil:
		productID := line.ProductID
		priced, err := s.pricer.Price(ctx, configurator.PriceInput{
			ProductID:  &productID,
			Quantity:   line.Quantity,
			PlanID:     line.PlanID,
			MaterialID: line.MaterialID,
			FeatureID:  line.FeatureID,
			Services:   line.Services,
		})
		if err != nil {
			return models.QuoteLineItem{}, err
		}
		base = priced.Result.UnitPrice.Round(4)
		if name == "" && priced.Product != nil {
			name = priced.Product.Name
		}
	default:
		return models.QuoteLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "unit_price is required")
	}
	if name == "" {
		return models.QuoteLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product_name is required")
	}

	resolution, err := s.resolver.CalculatePrice(ctx, customerID, line.ProductID, base, line.Quantity)
	if err != nil {
		return models.QuoteLineItem{}, err
	}
	return models.QuoteLineItem{
		ProductID:       line.ProductID,
		ProductName:     name,
		Quantity:        line.Quantity,
		BaseUnitPrice:   base,
		UnitPrice:       resolution.DiscountedPrice.Round(4),
		DiscountPercent: resolution.DiscountPercent,
		LineTotal:       resolution.Total.Round(2),
	}, nil
}

func (s *service) inTx(ctx context.Context, fn func(repo Repository) error) error {
	if s.db == nil {
		return fn(s.repo)
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func (s *service) nextNumber(ctx context.Context, repo Repository, now time.Time) (string, error) {
	if s.numbers != nil {
		number, err := s.numbers.Next(ctx, now)
		if err == nil {
			return number, nil
		}
		s.logg.Error(ctx, "quote number counter unavailable, counting quotes instead", err)
	}
	number, err := NewDBNumberSource(repo).Next(ctx, now)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate quote number")
	}
	return number, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expireIfStale(ctx, quote)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid quote status %q", *params.Status)
	}
	page := params.Page.Normalize()
	rows, err := s.repo.List(ctx, listQuotesParams{
		CustomerID: params.CustomerID,
		Status:     params.Status,
		Limit:      pagination.LimitWithBuffer(page.Limit),
		Offset:     page.Offset,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	items, meta := pagination.Trim(rows, page)
	for i := range items {
		refreshed, err := s.expireIfStale(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		items[i] = *refreshed
	}
	if items == nil {
		items = []models.Quote{}
	}
	return &ListResult{Items: items, Page: meta}, nil
}

func (s *service) Send(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return s.transition(ctx, id, enums.QuoteStatusSent)
}

// UpdateStatus records the customer's decision on a sent quote. Only accepted,
// rejected and expired are reachable here; drafts leave via Send.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) (*models.Quote, error) {
	switch status {
	case enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusExpired:
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "status %q cannot be set directly", status)
	}
	return s.transition(ctx, id, status)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, to enums.QuoteStatus) (*models.Quote, error) {
	quote, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := quote.Status
	if !allowedTransition(from, to) {
		return nil, stateConflict(from, to)
	}

	now := s.now().UTC()
	var changed bool
	if to == enums.QuoteStatusSent {
		changed, err = s.repo.MarkSent(ctx, id, now, s.validUntilOnSend(quote, now))
	} else {
		changed, err = s.repo.TransitionStatus(ctx, id, from, to, now)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote status")
	}
	if !changed {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, stateConflict(current.Status, to)
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, updated, from)
	return updated, nil
}

// validUntilOnSend keeps the quoted validity while it is still open. A draft
// whose validity lapsed before it was sent gets its original window again,
// counted from now.
func (s *service) validUntilOnSend(quote *models.Quote, now time.Time) time.Time {
	if now.Before(quote.ValidUntil) {
		return quote.ValidUntil
	}
	days := int(quote.ValidUntil.Sub(quote.CreatedAt).Hours() / 24)
	if days <= 0 {
		days = s.validityDays
	}
	return now.AddDate(0, 0, days)
}

func (s *service) expireIfStale(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	now := s.now().UTC()
	if quote.Status != enums.QuoteStatusSent || !now.After(quote.ValidUntil) {
		return quote, nil
	}
	changed, err := s.repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusSent, enums.QuoteStatusExpired, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire quote")
	}
	refreshed, err := s.load(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.announce(ctx, refreshed, enums.QuoteStatusSent)
	}
	return refreshed, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	quote, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	return quote, nil
}

func (s *service) announce(ctx context.Context, quote *models.Quote, from enums.QuoteStatus) {
	logCtx := s.logg.WithFields(s.logg.WithQuoteID(ctx, quote.ID.String()), map[string]any{
		"from": string(from),
		"to":   string(quote.Status),
	})
	s.logg.Info(logCtx, "quote status changed")

	if msg, ok := StatusMessage(*quote); ok {
		s.notifier.Notify(ctx, msg)
	}
}

// StatusMessage builds the notification for a quote that just entered its
// current status. Drafts produce none.
func StatusMessage(quote models.Quote) (notifications.Message, bool) {
	var (
		kind  enums.NotificationType
		title string
		body  string
	)
	switch quote.Status {
	case enums.QuoteStatusSent:
		kind = enums.NotificationTypeQuoteSent
		title = fmt.Sprintf("Quote %s sent", quote.Number)
		body = fmt.Sprintf("Quote %s for %s is valid until %s", quote.Number, quote.Total.StringFixed(2), quote.ValidUntil.Format("2006-01-02"))
	case enums.QuoteStatusAccepted:
		kind = enums.NotificationTypeQuoteAccepted
		title = fmt.Sprintf("Quote %s accepted", quote.Number)
		body = fmt.Sprintf("Quote %s was accepted", quote.Number)
	case enums.QuoteStatusRejected:
		kind = enums.NotificationTypeQuoteRejected
		title = fmt.Sprintf("Quote %s rejected", quote.Number)
		body = fmt.Sprintf("Quote %s was rejected", quote.Number)
	case enums.QuoteStatusExpired:
		kind = enums.NotificationTypeQuoteExpired
		title = fmt.Sprintf("Quote %s expired", quote.Number)
		body = fmt.Sprintf("Quote %s expired on %s", quote.Number, quote.ValidUntil.Format("2006-01-02"))
	default:
		return notifications.Message{}, false
	}
	customerID := quote.CustomerID
	link := "/quotes/" + quote.ID.String()
	return notifications.Message{
		CustomerID: &customerID,
		Type:       kind,
		Title:      title,
		Body:       body,
		Link:       &link,
	}, true
}

func allowedTransition(from, to enums.QuoteStatus) bool {
	switch from {
	case enums.QuoteStatusDraft:
		return to == enums.QuoteStatusSent
	case enums.QuoteStatusSent:
		return to == enums.QuoteStatusAccepted || to == enums.QuoteStatusRejected || to == enums.QuoteStatusExpired
	default:
		return false
	}
}

func stateConflict(from, to enums.QuoteStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "quote cannot move from %s to %s", from, to).
		WithDetails(map[string]any{"from": string(from), "to": string(to)})
}
