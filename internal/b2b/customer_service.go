package b2b

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/pkg/db"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
	"github.com/angelmondragon/pouchlab-backend/pkg/pagination"
)

// CustomerService manages wholesale customer records.
type CustomerService interface {
	Create(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, params ListCustomersParams) (*CustomerList, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error)
	ChangeGroup(ctx context.Context, id uuid.UUID, group enums.CustomerGroup) (*models.Customer, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Customer, error)
}

// CreateCustomerInput registers a customer. Nil overrides take the group defaults.
type CreateCustomerInput struct {
	Name             string              `json:"name" validate:"required,max=200"`
	Email            string              `json:"email" validate:"required,email"`
	Company          *string             `json:"company"`
	VATNumber        *string             `json:"vat_number"`
	Group            enums.CustomerGroup `json:"group" validate:"required"`
	DiscountPercent  *decimal.Decimal    `json:"discount_percent"`
	MinOrderAmount   *decimal.Decimal    `json:"min_order_amount"`
	PaymentTermsDays *int                `json:"payment_terms_days"`
}

// UpdateCustomerInput patches contact data and term overrides.
type UpdateCustomerInput struct {
	Name             *string          `json:"name"`
	Email            *string          `json:"email"`
	Company          *string          `json:"company"`
	VATNumber        *string          `json:"vat_number"`
	DiscountPercent  *decimal.Decimal `json:"discount_percent"`
	MinOrderAmount   *decimal.Decimal `json:"min_order_amount"`
	PaymentTermsDays *int             `json:"payment_terms_days"`
}

// ListCustomersParams filters the customer list.
type ListCustomersParams struct {
	Group      *enums.CustomerGroup
	ActiveOnly bool
	Search     string
	Page       pagination.Params
}

// CustomerList is one page of customers.
type CustomerList struct {
	Items []models.Customer `json:"items"`
	Page  pagination.Page   `json:"page"`
}

type customerService struct {
	repo     CustomerRepository
	notifier notifications.Notifier
	logg     *logger.Logger
}

// CustomerServiceParams wires the customer service. Notifier is optional.
type CustomerServiceParams struct {
	Repository CustomerRepository
	Notifier   notifications.Notifier
	Logger     *logger.Logger
}

// NewCustomerService builds a customer service.
func NewCustomerService(params CustomerServiceParams) (CustomerService, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Discard{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &customerService{repo: params.Repository, notifier: notifier, logg: logg}, nil
}

func (s *customerService) Create(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if !input.Group.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid customer group %q", input.Group)
	}

	terms := DefaultTerms(input.Group)
	customer := &models.Customer{
		ID:               uuid.New(),
		Name:             name,
		Email:            email,
		Company:          trimOptional(input.Company),
		VATNumber:        trimOptional(input.VATNumber),
		Group:            input.Group,
		DiscountPercent:  terms.DiscountPercent,
		MinOrderAmount:   terms.MinOrderAmount,
		PaymentTermsDays: terms.PaymentTermsDays,
		IsActive:         true,
	}
	if err := applyTermOverrides(customer, input.DiscountPercent, input.MinOrderAmount, input.PaymentTermsDays); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a customer with this email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}

	logCtx := s.logg.WithCustomerID(ctx, customer.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "group", string(customer.Group)), "customer created")
	return customer, nil
}

func (s *customerService) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

func (s *customerService) List(ctx context.Context, params ListCustomersParams) (*CustomerList, error) {
	if params.Group != nil && !params.Group.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid customer group %q", *params.Group)
	}
	page := params.Page.Normalize()
	rows, err := s.repo.List(ctx, listCustomersParams{
		Group:      params.Group,
		ActiveOnly: params.ActiveOnly,
		Search:     params.Search,
		Limit:      pagination.LimitWithBuffer(page.Limit),
		Offset:     page.Offset,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	items, meta := pagination.Trim(rows, page)
	if items == nil {
		items = []models.Customer{}
	}
	return &CustomerList{Items: items, Page: meta}, nil
}

func (s *customerService) Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		customer.Name = name
	}
	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		customer.Email = email
	}
	if input.Company != nil {
		customer.Company = trimOptional(input.Company)
	}
	if input.VATNumber != nil {
		customer.VATNumber = trimOptional(input.VATNumber)
	}
	if err := applyTermOverrides(customer, input.DiscountPercent, input.MinOrderAmount, input.PaymentTermsDays); err != nil {
		return nil, err
	}

	if err := s.save(ctx, customer); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "customer updated")
	return customer, nil
}

// ChangeGroup moves the customer to a new group and resets its terms to the
// new group's defaults, discarding any overrides.
func (s *customerService) ChangeGroup(ctx context.Context, id uuid.UUID, group enums.CustomerGroup) (*models.Customer, error) {
	if !group.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid customer group %q", group)
	}
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := customer.Group
	terms := DefaultTerms(group)
	customer.Group = group
	customer.DiscountPercent = terms.DiscountPercent
	customer.MinOrderAmount = terms.MinOrderAmount
	customer.PaymentTermsDays = terms.PaymentTermsDays

	if err := s.save(ctx, customer); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithCustomerID(ctx, customer.ID.String()), map[string]any{
		"previous_group": string(previous),
		"group":          string(group),
	})
	s.logg.Info(logCtx, "customer group changed")

	s.notifier.Notify(ctx, notifications.Message{
		CustomerID: &customer.ID,
		Type:       enums.NotificationTypeCustomerUpdate,
		Title:      "Customer group changed",
		Body:       fmt.Sprintf("%s moved from %s to %s; terms reset to group defaults", customer.Name, previous, group),
	})
	return customer, nil
}

func (s *customerService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.IsActive == active {
		return customer, nil
	}
	customer.IsActive = active
	if err := s.save(ctx, customer); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithCustomerID(ctx, customer.ID.String()), "active", active), "customer activation changed")
	return customer, nil
}

func (s *customerService) save(ctx context.Context, customer *models.Customer) error {
	if err := s.repo.Update(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "a customer with this email already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
	}
	return nil
}

func applyTermOverrides(customer *models.Customer, discount, minOrder *decimal.Decimal, paymentTerms *int) error {
	if discount != nil {
		if discount.IsNegative() || discount.GreaterThanOrEqual(hundred) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be within [0, 100)")
		}
		customer.DiscountPercent = *discount
	}
	if minOrder != nil {
		if minOrder.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount must not be negative")
		}
		customer.MinOrderAmount = *minOrder
	}
	if paymentTerms != nil {
		if *paymentTerms < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment terms must not be negative")
		}
		customer.PaymentTermsDays = *paymentTerms
	}
	return nil
}

var emailValidator = validator.New()

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	return email, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
