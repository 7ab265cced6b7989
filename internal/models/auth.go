package models

import (
	"time"
)

type TokenInfo struct {
	Token           string    `json:"token"`
	RequestCount    int       `json:"request_count"`
	LastRequestTime time.Time `json:"last_request_dttm_utc"`
	CreatedTime     time.Time `json:"created_dttm_utc"`
}

// ChatClassMapping links a messenger chat to the school class whose
// boletim notifications it receives.
type ChatClassMapping struct {
	ClassID         int64     `json:"class_id"`
	Name            string    `json:"name"`
	Comment         string    `json:"comment"`
	AssociationTime time.Time `json:"association_time"`
	RegisteredBy    int64     `json:"registered_by"`
}
