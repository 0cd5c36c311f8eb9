package b2b

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// CustomerRepository persists wholesale customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, params listCustomersParams) ([]models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
}

// PriceListRepository persists special price lists and their entries.
type PriceListRepository interface {
	Create(ctx context.Context, list *models.PriceList) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PriceList, error)
	List(ctx context.Context, params listPriceListsParams) ([]models.PriceList, error)
	ListActiveForProduct(ctx context.Context, group enums.CustomerGroup, productID uuid.UUID) ([]models.PriceList, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
	DeactivateExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.PriceList, error)
}

type listCustomersParams struct {
	Group      *enums.CustomerGroup
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

type listPriceListsParams struct {
	Group      *enums.CustomerGroup
	ActiveOnly bool
	Limit      int
	Offset     int
}

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository returns a customer repository bound to the provided database.
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) List(ctx context.Context, params listCustomersParams) ([]models.Customer, error) {
	query := r.db.WithContext(ctx).Model(&models.Customer{})
	if params.Group != nil {
		query = query.Where("customer_group = ?", *params.Group)
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", like, like, like)
	}

	var customers []models.Customer
	if err := query.Order("name ASC, id ASC").Limit(params.Limit).Offset(params.Offset).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

type priceListRepository struct {
	db *gorm.DB
}

// NewPriceListRepository returns a price list repository bound to the provided database.
func NewPriceListRepository(db *gorm.DB) PriceListRepository {
	return &priceListRepository{db: db}
}

func (r *priceListRepository) Create(ctx context.Context, list *models.PriceList) error {
	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	for i := range list.Entries {
		if list.Entries[i].ID == uuid.Nil {
			list.Entries[i].ID = uuid.New()
		}
		list.Entries[i].PriceListID = list.ID
	}
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *priceListRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PriceList, error) {
	var list models.PriceList
	if err := r.db.WithContext(ctx).Preload("Entries").First(&list, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *priceListRepository) List(ctx context.Context, params listPriceListsParams) ([]models.PriceList, error) {
	query := r.db.WithContext(ctx).Model(&models.PriceList{}).Preload("Entries")
	if params.Group != nil {
		query = query.Where("customer_group = ?", *params.Group)
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var lists []models.PriceList
	if err := query.Order("valid_from DESC, id ASC").Limit(params.Limit).Offset(params.Offset).Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// ListActiveForProduct returns flagged-active lists of the group that carry an
// entry for the product. The validity window is left to the caller.
func (r *priceListRepository) ListActiveForProduct(ctx context.Context, group enums.CustomerGroup, productID uuid.UUID) ([]models.PriceList, error) {
	var lists []models.PriceList
	err := r.db.WithContext(ctx).
		Preload("Entries", "product_id = ?", productID).
		Where("customer_group = ? AND is_active = ?", group, true).
		Where("EXISTS (SELECT 1 FROM price_list_entries e WHERE e.price_list_id = price_lists.id AND e.product_id = ?)", productID).
		Order("valid_from DESC, id ASC").
		Find(&lists).Error
	if err != nil {
		return nil, err
	}
	return lists, nil
}

func (r *priceListRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PriceList{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeactivateExpired flips active lists whose window closed before now and
// returns the lists it changed.
func (r *priceListRepository) DeactivateExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.PriceList, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var expired []models.PriceList
	if err := conn.WithContext(ctx).
		Where("is_active = ? AND valid_until IS NOT NULL AND valid_until < ?", true, now).
		Find(&expired).Error; err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(expired))
	for _, list := range expired {
		ids = append(ids, list.ID)
	}
	if err := conn.WithContext(ctx).
		Model(&models.PriceList{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}
	for i := range expired {
		expired[i].IsActive = false
	}
	return expired, nil
}
