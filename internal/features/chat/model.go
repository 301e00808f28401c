package chat

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupType string

const (
	GroupTypeDirectMessage GroupType = "direct_message"
	GroupTypeBroadcast     GroupType = "broadcast"
)

type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusInactive GroupStatus = "inactive"
	GroupStatusArchived GroupStatus = "archived"
)

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

type AccessMode string

const (
	AccessModeAdmin AccessMode = "admin"
	AccessModeAgent AccessMode = "agent"
)

// RemovalMode selects soft vs hard removal explicitly instead of boolean
// flags at each call site.
type RemovalMode int

const (
	RemoveSoft RemovalMode = iota
	RemoveHard
)

// GroupIDPrefix marks locally generated chat group ids.
const GroupIDPrefix = "CHT-"

// hardParticipantCeiling is the absolute participant limit; a group's
// configured MaxUsersAllowed may be lower, never higher.
const hardParticipantCeiling = 250

type AccessControl struct {
	MaxUsersAllowed        int        `json:"max_users_allowed" bson:"max_users_allowed"`
	BidirectionalReply     bool       `json:"bidirectional_reply" bson:"bidirectional_reply"`
	AttachmentsAllowed     bool       `json:"attachments_allowed" bson:"attachments_allowed"`
	RichTextAllowed        bool       `json:"rich_text_allowed" bson:"rich_text_allowed"`
	CaptureActivity        bool       `json:"capture_activity" bson:"capture_activity"`
	NotificationPauseFrom  *time.Time `json:"notification_pause_from,omitempty" bson:"notification_pause_from,omitempty"`
	NotificationPauseUntil *time.Time `json:"notification_pause_until,omitempty" bson:"notification_pause_until,omitempty"`
	OpenHour               int        `json:"open_hour" bson:"open_hour"`
	CloseHour              int        `json:"close_hour" bson:"close_hour"`
	AvailableOnWeekends    bool       `json:"available_on_weekends" bson:"available_on_weekends"`
}

// GroupMetrics is derived state; it is recomputed from membership rows,
// never hand-edited.
type GroupMetrics struct {
	ActiveAdminCount int `json:"active_admin_count" bson:"active_admin_count"`
	TotalUserCount   int `json:"total_user_count" bson:"total_user_count"`
	ActiveUserCount  int `json:"active_user_count" bson:"active_user_count"`
}

type MessageActivity struct {
	MessageID string    `json:"message_id" bson:"message_id"`
	Text      string    `json:"text" bson:"text"`
	Status    string    `json:"status" bson:"status"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type GroupImage struct {
	Bucket string `json:"bucket" bson:"bucket"`
	URI    string `json:"uri" bson:"uri"`
}

// Group binds one vendor thread to its local system-of-record state.
// GroupID and VendorThreadID are immutable once set.
type Group struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GroupID             string             `json:"group_id" bson:"group_id"`
	VendorThreadID      string             `json:"vendor_thread_id" bson:"vendor_thread_id"`
	Name                string             `json:"name" bson:"name"`
	Type                GroupType          `json:"type" bson:"type"`
	Category            string             `json:"category,omitempty" bson:"category,omitempty"`
	BranchID            string             `json:"branch_id" bson:"branch_id"`
	IntendedForUserID   string             `json:"intended_for_user_id,omitempty" bson:"intended_for_user_id,omitempty"`
	Image               *GroupImage        `json:"image,omitempty" bson:"image,omitempty"`
	Status              GroupStatus        `json:"status" bson:"status"`
	AccessControl       AccessControl      `json:"access_control" bson:"access_control"`
	Metrics             GroupMetrics       `json:"metrics" bson:"metrics"`
	LastMessageActivity *MessageActivity   `json:"last_message_activity,omitempty" bson:"last_message_activity,omitempty"`
	CreatedBy           string             `json:"created_by" bson:"created_by"`
	CreatedByUserID     string             `json:"created_by_user_id" bson:"created_by_user_id"`
	UpdatedByUserID     string             `json:"updated_by_user_id" bson:"updated_by_user_id"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" bson:"updated_at"`
}

// Membership is one row per (employee, group). A row exists only after the
// vendor thread was confirmed to contain the participant.
type Membership struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EmployeeID   string             `json:"employee_id" bson:"employee_id"`
	GroupID      string             `json:"group_id" bson:"group_id"`
	VendorUserID string             `json:"vendor_user_id" bson:"vendor_user_id"`
	BranchID     string             `json:"branch_id" bson:"branch_id"`
	DisplayName  string             `json:"display_name" bson:"display_name"`
	AccessMode   AccessMode         `json:"access_mode" bson:"access_mode"`
	Status       MemberStatus       `json:"status" bson:"status"`
	MuteEnabled  bool               `json:"mute_enabled" bson:"mute_enabled"`
	MuteUntil    *time.Time         `json:"mute_until,omitempty" bson:"mute_until,omitempty"`
	LastSeenAt   *time.Time         `json:"last_seen_at,omitempty" bson:"last_seen_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// GroupPatch carries a partial group update; nil fields are left untouched.
type GroupPatch struct {
	GroupID             string
	Name                *string
	Status              *GroupStatus
	Image               *GroupImage
	AccessControl       *AccessControl
	Metrics             *GroupMetrics
	LastMessageActivity *MessageActivity
	UpdatedByUserID     string
}

type GroupFilter struct {
	BranchID          string
	Type              GroupType
	Category          string
	Status            GroupStatus
	IntendedForUserID string
}

type PageOptions struct {
	Skip       int
	Limit      int
	SortField  string
	SortOrder  int // 1 ascending, -1 descending
	SearchText string
}
