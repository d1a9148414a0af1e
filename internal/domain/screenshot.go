package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ProcessStatus represents the enrichment lifecycle of a screenshot record.
// Transitions are forward-only: pending -> processed or pending -> error.
type ProcessStatus string

const (
	StatusPending   ProcessStatus = "pending"
	StatusProcessed ProcessStatus = "processed"
	StatusError     ProcessStatus = "error"
)

// VectorRefNone marks a record whose embedding was never stored because the
// vector index was unavailable during enrichment.
const VectorRefNone = "not_stored"

// QuickLink kinds. A direct link points at a verified source URL; a search
// string is a fallback query the client can paste into a search engine.
const (
	QuickLinkDirect       = "direct"
	QuickLinkSearchString = "search_string"
)

// QuickLink is the canonical re-find action distilled for a screenshot,
// stored as a JSON column.
type QuickLink struct {
	Kind   string `json:"kind"`
	Target string `json:"value"`
}

// Value implements the driver.Valuer interface for database serialization.
func (q QuickLink) Value() (driver.Value, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (q *QuickLink) Scan(value interface{}) error {
	if value == nil {
		*q = QuickLink{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan QuickLink")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, q)
}

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Screenshot represents one captured image and everything the enrichment
// pipeline derived from it. Derived fields (AITitle, AIDescription, Tags,
// Narrative, QuickLink, VectorID) are written together in a single terminal
// update; a record never carries a partial set.
type Screenshot struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	UserID        string        `gorm:"type:text;not null;index:idx_screenshots_user" json:"user_id"`
	StorageKey    string        `gorm:"type:text;not null" json:"storage_key"`
	ThumbKey      string        `gorm:"type:text" json:"thumb_key,omitempty"`
	ImageURL      string        `gorm:"type:text" json:"image_url"`
	ThumbnailURL  string        `gorm:"type:text" json:"thumbnail_url,omitempty"`
	UserNote      string        `gorm:"type:text" json:"user_note,omitempty"`
	Status        ProcessStatus `gorm:"column:process_status;type:text;index:idx_screenshots_status;default:pending" json:"process_status"`
	AITitle       string        `gorm:"column:ai_title;type:text" json:"ai_title,omitempty"`
	AIDescription string        `gorm:"column:ai_description;type:text" json:"ai_description,omitempty"`
	Tags          StringArray   `gorm:"type:text" json:"tags"`
	Narrative     string        `gorm:"type:text" json:"narrative,omitempty"`
	QuickLink     QuickLink     `gorm:"type:text" json:"quick_link"`
	VectorID      string        `gorm:"type:text" json:"vector_id,omitempty"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	FileSize      int64         `json:"file_size"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Screenshot.
func (Screenshot) TableName() string {
	return "screenshots"
}

// Enrichment carries the full set of derived fields committed by the
// pipeline's terminal write.
type Enrichment struct {
	Title       string
	Description string
	Tags        []string
	Narrative   string
	QuickLink   QuickLink
	VectorID    string
}

// ScreenshotResult is a retrieval hit: the record plus its rerank score.
type ScreenshotResult struct {
	Screenshot
	Score float64 `json:"score"`
}
