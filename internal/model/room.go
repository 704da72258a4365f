package model

import "time"

// AccessKind marks a room_access row as an allow or a block entry. A user
// has at most one row per room, so the allow and block lists are disjoint
// by construction.
type AccessKind string

const (
	AccessAllow AccessKind = "allow"
	AccessBlock AccessKind = "block"
)

// Room is the record for one live ephemeral voice channel. It exists iff
// the platform channel is believed to exist; any lookup that finds the
// channel gone deletes the record.
type Room struct {
	GuildID   string `gorm:"index;not null;type:varchar(64)" json:"guild_id"`
	ChannelID string `gorm:"primaryKey;type:varchar(64)" json:"channel_id"`
	OwnerID   string `gorm:"index;not null;type:varchar(64)" json:"owner_id"`
	Name      string `gorm:"not null;type:varchar(255)" json:"name"`

	UserLimit int  `gorm:"not null;default:0" json:"user_limit"` // 0 = unlimited
	IsLocked  bool `gorm:"not null;default:false" json:"is_locked"`

	Access []RoomAccess `gorm:"foreignKey:ChannelID;references:ChannelID;constraint:OnDelete:CASCADE" json:"access"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomAccess is one entry of a room's allow or block list.
type RoomAccess struct {
	ChannelID string     `gorm:"primaryKey;type:varchar(64)" json:"channel_id"`
	UserID    string     `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Kind      AccessKind `gorm:"not null;type:varchar(8)" json:"kind"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RoomAccess) TableName() string {
	return "room_access"
}

// AllowedUsers returns the IDs of the room's allow-list entries.
func (r *Room) AllowedUsers() []string {
	return r.usersOfKind(AccessAllow)
}

// BlockedUsers returns the IDs of the room's block-list entries.
func (r *Room) BlockedUsers() []string {
	return r.usersOfKind(AccessBlock)
}

// IsAllowed reports whether the user is on the allow list.
func (r *Room) IsAllowed(userID string) bool {
	return r.hasKind(userID, AccessAllow)
}

// IsBlocked reports whether the user is on the block list.
func (r *Room) IsBlocked(userID string) bool {
	return r.hasKind(userID, AccessBlock)
}

func (r *Room) usersOfKind(kind AccessKind) []string {
	var ids []string
	for _, a := range r.Access {
		if a.Kind == kind {
			ids = append(ids, a.UserID)
		}
	}
	return ids
}

func (r *Room) hasKind(userID string, kind AccessKind) bool {
	for _, a := range r.Access {
		if a.UserID == userID && a.Kind == kind {
			return true
		}
	}
	return false
}
