// Package models holds the GORM row types the repositories read and
// write. Domain entities stay free of ORM tags; each model here mirrors
// one aggregate and converts both ways through ToDomain/FromDomain
// mappers. letting.go covers the letting context (Agency, Tenancy,
// TenancyMember), ledger.go the ledger context (PaymentSchedule,
// Payment).
package models
