package domain

import "time"

// Query is one retrieval request. A row is recorded for every request,
// whether or not it produced results.
type Query struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	UserID      string    `gorm:"type:text;not null;index:idx_queries_user" json:"user_id"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	ResultCount int       `json:"result_count"`
	VectorID    string    `gorm:"type:text" json:"vector_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Query.
func (Query) TableName() string {
	return "queries"
}
