package models

import (
	"time"
)

// Log is the persisted shape of a structured log entry. Entries are written
// asynchronously by the logger's Mongo sink.
type Log struct {
	Message       string    `bson:"message" json:"message"`
	TransactionId string    `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	GroupId       string    `bson:"group_id,omitempty" json:"group_id,omitempty"`
	BranchId      string    `bson:"branch_id,omitempty" json:"branch_id,omitempty"`
	Caller        string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId    int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc  time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
