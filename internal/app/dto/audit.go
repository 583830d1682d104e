package dto

import "glampstay/internal/domain/audit"

type AuditTrail struct {
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Entries    []audit.Entry `json:"entries"`
}
