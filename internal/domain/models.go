// Package domain defines the persistence models for users, conversations,
// announcements, read-state and feedback. These types are mapped with GORM and
// form the core data layer of the admin backend.
package domain

import (
	"time"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// SuperAdminUsername is the reserved account that always exists and can never
// be demoted.
const SuperAdminUsername = "admin"

// Announcement priorities.
const (
	PriorityNormal    = 0
	PriorityImportant = 1
	PriorityUrgent    = 2
)

// User is an account that can log in to the chat front-end or the admin
// dashboard.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Username: unique login name.
//   - Email: optional, unique when present (NULL is allowed multiple times).
//   - Password: bcrypt hash; never serialized.
//   - Role: "user" or "admin" (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        uint      `json:"id"        gorm:"primaryKey"`
	Username  string    `json:"username"  gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email     *string   `json:"email"     gorm:"type:varchar(255);uniqueIndex:ux_users_email"`
	Password  string    `json:"-"         gorm:"type:varchar(255);not null"`
	Role      string    `json:"role"      gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"updateTime"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Conversation is one logged question/answer exchange owned by a user.
//
// Content holds a JSON object {question, answer, shareId?, appId?}; Title is a
// display string derived from the question.
type Conversation struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    uint      `json:"userId"     gorm:"not null;index:idx_conversations_user"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createTime" gorm:"index:idx_conversations_created"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Announcement is a broadcast message published by an admin. Deleting an
// announcement only deactivates it.
type Announcement struct {
	ID          uint       `json:"id"          gorm:"primaryKey"`
	AdminUserID uint       `json:"adminUserId" gorm:"not null;index"`
	Title       string     `json:"title"       gorm:"type:varchar(255);not null"`
	Content     string     `json:"content"     gorm:"type:text;not null"`
	Priority    int        `json:"priority"    gorm:"not null;default:0;check:priority IN (0,1,2)"`
	IsActive    bool       `json:"isActive"    gorm:"not null;default:true;index"`
	CreatedAt   time.Time  `json:"createTime"`
	ExpireTime  *time.Time `json:"expireTime,omitempty"`
}

// TableName returns the database table name for Announcement.
func (Announcement) TableName() string { return "announcements" }

// UserAnnouncementStatus records whether a user has read an announcement.
// There is at most one row per (announcement, user) pair.
type UserAnnouncementStatus struct {
	ID             uint       `json:"id"             gorm:"primaryKey"`
	AnnouncementID uint       `json:"announcementId" gorm:"not null;uniqueIndex:ux_announcement_user,priority:1"`
	UserID         uint       `json:"userId"         gorm:"not null;uniqueIndex:ux_announcement_user,priority:2;index"`
	IsRead         bool       `json:"isRead"         gorm:"not null;default:false"`
	ReadTime       *time.Time `json:"readTime,omitempty"`

	// Announcement is the parent row; status rows follow it on delete.
	Announcement Announcement `json:"-" gorm:"foreignKey:AnnouncementID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserAnnouncementStatus.
func (UserAnnouncementStatus) TableName() string { return "user_announcement_status" }

// Feedback is free-text feedback submitted by a user.
type Feedback struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    uint      `json:"userId"     gorm:"not null;index"`
	Context   string    `json:"context"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createTime"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
