// Package store is the durable local store: every row that must survive a
// restart is read and written here.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-pedidos/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: record not found")

const batchSize = 200

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle (health checks, migrations).
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// MasterData is one consistent snapshot fetched from the remote service.
type MasterData struct {
	Products  []models.Product
	Companies []models.Company
	Advisors  []models.Advisor
}

// ApplyMasterData replaces products and advisors and merges companies in a
// single transaction. It returns the merged companies.
func (s *Store) ApplyMasterData(ctx context.Context, md MasterData) ([]models.Company, error) {
	var merged []models.Company
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceProducts(tx, md.Products); err != nil {
			return err
		}
		var err error
		if merged, err = mergeCompanies(tx, md.Companies); err != nil {
			return err
		}
		return replaceAdvisors(tx, md.Advisors)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Store) ReplaceProducts(ctx context.Context, products []models.Product) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceProducts(tx, products)
	})
}

func (s *Store) ReplaceAdvisors(ctx context.Context, advisors []models.Advisor) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceAdvisors(tx, advisors)
	})
}

// MergeCompanies upserts companies keeping the larger counter of the local
// and incoming rows. Companies missing from incoming are left untouched.
func (s *Store) MergeCompanies(ctx context.Context, companies []models.Company) ([]models.Company, error) {
	var merged []models.Company
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		merged, err = mergeCompanies(tx, companies)
		return err
	})
	return merged, err
}

// ReplaceClients swaps the cached clients of one advisor.
func (s *Store) ReplaceClients(ctx context.Context, advisorID uint, clients []models.Client) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("advisor_id = ?", advisorID).Delete(&models.Client{}).Error; err != nil {
			return fmt.Errorf("clear clients: %w", err)
		}
		if len(clients) == 0 {
			return nil
		}
		for i := range clients {
			clients[i].AdvisorID = advisorID
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(clients, batchSize).Error; err != nil {
			return fmt.Errorf("insert clients: %w", err)
		}
		return nil
	})
}

func replaceProducts(tx *gorm.DB, products []models.Product) error {
	if err := tx.Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	if len(products) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(products, batchSize).Error; err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	return nil
}

func replaceAdvisors(tx *gorm.DB, advisors []models.Advisor) error {
	if err := tx.Where("1 = 1").Delete(&models.Advisor{}).Error; err != nil {
		return fmt.Errorf("clear advisors: %w", err)
	}
	if len(advisors) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(advisors, batchSize).Error; err != nil {
		return fmt.Errorf("insert advisors: %w", err)
	}
	return nil
}

func mergeCompanies(tx *gorm.DB, incoming []models.Company) ([]models.Company, error) {
	var local []models.Company
	if err := tx.Find(&local).Error; err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	byID := make(map[uint]models.Company, len(local))
	for _, c := range local {
		byID[c.CompanyID] = c
	}
	merged := make([]models.Company, 0, len(incoming))
	for _, in := range incoming {
		m := in
		if cur, ok := byID[in.CompanyID]; ok {
			m = cur.MergeCounters(in)
		}
		if err := tx.Save(&m).Error; err != nil {
			return nil, fmt.Errorf("save company %d: %w", m.CompanyID, err)
		}
		merged = append(merged, m)
	}
	return merged, nil
}

// CommitCompanyCounter stores the company returned by a successful counter
// update. The local order counter becomes max(local, reserved); the other
// fields come from the returned row.
func (s *Store) CommitCompanyCounter(ctx context.Context, returned models.Company, reserved int) (models.Company, error) {
	var saved models.Company
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var local models.Company
		err := tx.First(&local, "company_id = ?", returned.CompanyID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		saved = returned
		saved.NextOrderCounter = max(local.NextOrderCounter, reserved)
		saved.NextReceiptCounter = max(local.NextReceiptCounter, returned.NextReceiptCounter)
		if saved.LegalName == "" {
			saved.LegalName = local.LegalName
		}
		return tx.Save(&saved).Error
	})
	if err != nil {
		return models.Company{}, fmt.Errorf("commit counter for company %d: %w", returned.CompanyID, err)
	}
	return saved, nil
}

func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := s.conn(ctx).Order("product_id").Find(&out).Error
	return out, err
}

func (s *Store) Product(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	err := s.conn(ctx).First(&p, "product_id = ?", id).Error
	return p, notFound(err)
}

func (s *Store) Companies(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	err := s.conn(ctx).Order("company_id").Find(&out).Error
	return out, err
}

func (s *Store) Company(ctx context.Context, id uint) (models.Company, error) {
	var c models.Company
	err := s.conn(ctx).First(&c, "company_id = ?", id).Error
	return c, notFound(err)
}

func (s *Store) Advisors(ctx context.Context) ([]models.Advisor, error) {
	var out []models.Advisor
	err := s.conn(ctx).Order("advisor_id").Find(&out).Error
	return out, err
}

func (s *Store) ClientsByAdvisor(ctx context.Context, advisorID uint) ([]models.Client, error) {
	var out []models.Client
	err := s.conn(ctx).Where("advisor_id = ?", advisorID).Order("name, client_id").Find(&out).Error
	return out, err
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// LocalOrders returns the queued local orders in queue order.
func (s *Store) LocalOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := withItems(s.conn(ctx)).
		Where("is_local = ?", true).
		Order("created_at, order_id").
		Find(&out).Error
	return out, err
}

// ConfirmedOrders returns cached orders that the remote service accepted,
// newest first.
func (s *Store) ConfirmedOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := withItems(s.conn(ctx)).
		Where("is_local = ?", false).
		Order("created_at DESC, order_id DESC").
		Find(&out).Error
	return out, err
}

func (s *Store) Order(ctx context.Context, orderID string) (models.Order, error) {
	var o models.Order
	err := withItems(s.conn(ctx)).First(&o, "order_id = ?", orderID).Error
	return o, notFound(err)
}

// CreateOrder inserts an order with its items.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return insertOrder(tx, o)
	})
}

// SaveOrder rewrites an existing order and its items.
func (s *Store) SaveOrder(ctx context.Context, o *models.Order) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Order{}).Where("order_id = ?", o.OrderID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := tx.Omit(clause.Associations).Save(o).Error; err != nil {
			return fmt.Errorf("update order %s: %w", o.OrderID, err)
		}
		if err := tx.Where("order_id = ?", o.OrderID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("clear items of %s: %w", o.OrderID, err)
		}
		return insertItems(tx, o)
	})
}

// DeleteOrder removes an order and its items.
func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteOrder(tx, orderID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ConfirmLocalOrder replaces the queued local entry with the confirmed
// order, in one transaction.
func (s *Store) ConfirmLocalOrder(ctx context.Context, localID string, confirmed *models.Order) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteOrder(tx, localID); err != nil {
			return err
		}
		if _, err := deleteOrder(tx, confirmed.OrderID); err != nil {
			return err
		}
		return insertOrder(tx, confirmed)
	})
}

// CacheOrder stores a confirmed order, replacing any previous copy.
func (s *Store) CacheOrder(ctx context.Context, o *models.Order) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteOrder(tx, o.OrderID); err != nil {
			return err
		}
		return insertOrder(tx, o)
	})
}

func insertOrder(tx *gorm.DB, o *models.Order) error {
	if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
		return fmt.Errorf("insert order %s: %w", o.OrderID, err)
	}
	return insertItems(tx, o)
}

func insertItems(tx *gorm.DB, o *models.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.OrderID
		o.Items[i].Position = i
	}
	if err := tx.CreateInBatches(o.Items, batchSize).Error; err != nil {
		return fmt.Errorf("insert items of %s: %w", o.OrderID, err)
	}
	return nil
}

func deleteOrder(tx *gorm.DB, orderID string) (int64, error) {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return 0, fmt.Errorf("delete items of %s: %w", orderID, err)
	}
	res := tx.Where("order_id = ?", orderID).Delete(&models.Order{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete order %s: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}

// ConfigValue decodes the JSON value stored under key into dest.
// It reports false when the key is absent.
func (s *Store) ConfigValue(ctx context.Context, key string, dest any) (bool, error) {
	var entry models.ConfigEntry
	err := s.conn(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(entry.Value), dest); err != nil {
		return false, fmt.Errorf("decode config %q: %w", key, err)
	}
	return true, nil
}

// SetConfig stores v as JSON under key.
func (s *Store) SetConfig(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config %q: %w", key, err)
	}
	entry := models.ConfigEntry{Key: key, Value: string(raw)}
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	return s.conn(ctx).Where("key = ?", key).Delete(&models.ConfigEntry{}).Error
}

// SaveCurrentUser makes u the only session user.
func (s *Store) SaveCurrentUser(ctx context.Context, u models.SessionUser) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SessionUser{}).Error; err != nil {
			return err
		}
		return tx.Create(&u).Error
	})
}

func (s *Store) CurrentUser(ctx context.Context) (models.SessionUser, error) {
	var u models.SessionUser
	err := s.conn(ctx).Order("login_at DESC").First(&u).Error
	return u, notFound(err)
}

// ClearSession removes the session user and the confirmed order cache.
// Master data, config and queued local orders are kept.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SessionUser{}).Error; err != nil {
			return fmt.Errorf("clear session users: %w", err)
		}
		confirmed := tx.Model(&models.Order{}).Select("order_id").Where("is_local = ?", false)
		if err := tx.Where("order_id IN (?)", confirmed).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("clear cached items: %w", err)
		}
		if err := tx.Where("is_local = ?", false).Delete(&models.Order{}).Error; err != nil {
			return fmt.Errorf("clear cached orders: %w", err)
		}
		return nil
	})
}
