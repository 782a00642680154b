// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusCompleted PostStatus = "completed"
)

// PostStatuses lists every persistable status, in declaration order.
var PostStatuses = []PostStatus{PostStatusPending, PostStatusCompleted}

// Valid reports whether s is one of the persistable statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusCompleted:
		return true
	}
	return false
}

// Post is a scheduled marketing entry: what to publish, for which brand, on which
// platform, by when, and for how much.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id" example:"1"`
	Title     string     `gorm:"size:255;not null" json:"title" example:"New Campaign"`
	Brand     string     `gorm:"size:255;not null" json:"brand" example:"Brand A"`
	Platform  string     `gorm:"size:255;not null" json:"platform" example:"Instagram"`
	DueDate   Date       `gorm:"type:date;not null" json:"due_date" swaggertype:"string" format:"date" example:"2025-03-10"`
	Payment   Money      `gorm:"type:decimal(10,2);not null" json:"payment" swaggertype:"number" example:"100.50"`
	Status    PostStatus `gorm:"size:16;not null;default:pending" json:"status" enums:"pending,completed" example:"pending"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName pins the table name used by the SQL migrations.
func (Post) TableName() string {
	return "posts"
}

// PostInput carries the six business fields of a post, all set.
type PostInput struct {
	Title    string
	Brand    string
	Platform string
	DueDate  Date
	Payment  Money
	Status   PostStatus
}

// PostPatch carries the business fields present in an update request. A nil
// field was not sent and keeps its stored value.
type PostPatch struct {
	Title    *string
	Brand    *string
	Platform *string
	DueDate  *Date
	Payment  *Money
	Status   *PostStatus
}

// Empty reports whether the patch changes nothing.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Brand == nil && p.Platform == nil &&
		p.DueDate == nil && p.Payment == nil && p.Status == nil
}
