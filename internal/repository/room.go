package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/TempVoice/internal/model"
)

// IRoomRepository defines the interface for ephemeral room records. All
// mutations are single-statement, per-key updates so that interleaved
// operations on the same room never lose writes to a read-modify-write
// cycle.
type IRoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByChannel(ctx context.Context, channelID string) (*model.Room, error)
	FindByOwner(ctx context.Context, guildID, ownerID string) (*model.Room, error)
	CountByGuild(ctx context.Context, guildID string) (int64, error)
	Delete(ctx context.Context, channelID string) error

	SetOwner(ctx context.Context, channelID, ownerID string) error
	SetName(ctx context.Context, channelID, name string) error
	SetUserLimit(ctx context.Context, channelID string, limit int) error
	SetLocked(ctx context.Context, channelID string, locked bool) error

	// Allow puts the user on the allow list, flipping an existing block
	// entry in the same statement.
	Allow(ctx context.Context, channelID, userID string) error
	// Block puts the user on the block list, flipping an existing allow
	// entry in the same statement.
	Block(ctx context.Context, channelID, userID string) error
	// ClearAccess removes the user's entry of the given kind, if any.
	ClearAccess(ctx context.Context, channelID, userID string, kind model.AccessKind) error
}

// RoomRepository implements IRoomRepository on PostgreSQL.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new IRoomRepository instance
func NewRoomRepository(db *gorm.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// FindByChannel returns the room keyed by channel ID with its access lists
// loaded, or ErrNotFound.
func (r *RoomRepository) FindByChannel(ctx context.Context, channelID string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Preload("Access").
		Where("channel_id = ?", channelID).
		First(&room).Error
	if err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// FindByOwner returns the room owned by the member in the guild, or
// ErrNotFound.
func (r *RoomRepository) FindByOwner(ctx context.Context, guildID, ownerID string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Preload("Access").
		Where("guild_id = ? AND owner_id = ?", guildID, ownerID).
		First(&room).Error
	if err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// CountByGuild returns the number of live room records in a guild.
func (r *RoomRepository) CountByGuild(ctx context.Context, guildID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("guild_id = ?", guildID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes the room record and its access rows. Deleting an already
// deleted record is a no-op.
func (r *RoomRepository) Delete(ctx context.Context, channelID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", channelID).Delete(&model.RoomAccess{}).Error; err != nil {
			return err
		}
		return tx.Where("channel_id = ?", channelID).Delete(&model.Room{}).Error
	})
}

// SetOwner atomically reassigns the room owner.
func (r *RoomRepository) SetOwner(ctx context.Context, channelID, ownerID string) error {
	return r.updateField(ctx, channelID, "owner_id", ownerID)
}

// SetName atomically updates the stored room name.
func (r *RoomRepository) SetName(ctx context.Context, channelID, name string) error {
	return r.updateField(ctx, channelID, "name", name)
}

// SetUserLimit atomically updates the member cap (0 = unlimited).
func (r *RoomRepository) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	return r.updateField(ctx, channelID, "user_limit", limit)
}

// SetLocked atomically updates the lock flag.
func (r *RoomRepository) SetLocked(ctx context.Context, channelID string, locked bool) error {
	return r.updateField(ctx, channelID, "is_locked", locked)
}

func (r *RoomRepository) updateField(ctx context.Context, channelID, column string, value interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("channel_id = ?", channelID).
		Update(column, value).Error
}

// Allow upserts an allow entry for the user. A user has one access row per
// room, so a block entry flips to allow without an intermediate state
// where both lists contain the ID.
func (r *RoomRepository) Allow(ctx context.Context, channelID, userID string) error {
	return r.upsertAccess(ctx, channelID, userID, model.AccessAllow)
}

// Block upserts a block entry for the user, flipping an allow entry in the
// same statement.
func (r *RoomRepository) Block(ctx context.Context, channelID, userID string) error {
	return r.upsertAccess(ctx, channelID, userID, model.AccessBlock)
}

func (r *RoomRepository) upsertAccess(ctx context.Context, channelID, userID string, kind model.AccessKind) error {
	entry := model.RoomAccess{
		ChannelID: channelID,
		UserID:    userID,
		Kind:      kind,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"kind": kind}),
		}).
		Create(&entry).Error
}

// ClearAccess deletes the user's entry of the given kind. Clearing an
// absent entry is a no-op.
func (r *RoomRepository) ClearAccess(ctx context.Context, channelID, userID string, kind model.AccessKind) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ? AND kind = ?", channelID, userID, kind).
		Delete(&model.RoomAccess{}).Error
}
