package connection

import (
	"context"

	"github.com/waconnect/pkg/entities"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, conn *entities.Connection) error
	Update(ctx context.Context, id uint, t entities.Transition) error
	// UpdateFrom applies t only while the row is still in status from.
	UpdateFrom(ctx context.Context, id uint, from entities.ConnectionStatus, t entities.Transition) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (entities.Connection, error)
	FindByOwner(ctx context.Context, ownerID string) ([]entities.Connection, error)
	FindByStatus(ctx context.Context, status entities.ConnectionStatus) ([]entities.Connection, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) Create(ctx context.Context, conn *entities.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *repository) Update(ctx context.Context, id uint, t entities.Transition) error {
	res := r.db.WithContext(ctx).Model(&entities.Connection{}).Where("id = ?", id).Updates(t.Columns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateFrom(ctx context.Context, id uint, from entities.ConnectionStatus, t entities.Transition) error {
	res := r.db.WithContext(ctx).Model(&entities.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(t.Columns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entities.Connection{}, id).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (entities.Connection, error) {
	var conn entities.Connection
	err := r.db.WithContext(ctx).First(&conn, id).Error
	return conn, err
}

func (r *repository) FindByOwner(ctx context.Context, ownerID string) ([]entities.Connection, error) {
	var conns []entities.Connection
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at desc, id desc").Find(&conns).Error
	return conns, err
}

func (r *repository) FindByStatus(ctx context.Context, status entities.ConnectionStatus) ([]entities.Connection, error) {
	var conns []entities.Connection
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&conns).Error
	return conns, err
}
