// Package models holds the GORM row types of the persistence layer and
// their conversions to and from domain values. Domain packages carry no
// ORM tags; only repositories see these types.
//
// Tables: reference_rows (every catalog kind), documents with
// document_lines, and sequence_states (allocator state per tenant and
// scope). Tenant-owned aggregates embed TenantAggregateModel.
package models
