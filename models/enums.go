package models

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

type ReferenceType string

const (
	ReferenceInvoice             ReferenceType = "INVOICE"
	ReferenceInvoiceUpdate       ReferenceType = "INVOICE_UPDATE"
	ReferenceInvoiceUpdateRevert ReferenceType = "INVOICE_UPDATE_REVERT"
	ReferenceInvoiceCancellation ReferenceType = "INVOICE_CANCELLATION"
	ReferenceCreation            ReferenceType = "CREATION"
	ReferenceDeletion            ReferenceType = "DELETION"
)

// Invoice statuses are stored in French; the web client renders them verbatim.
const (
	InvoiceStatusPending   = "en attente"
	InvoiceStatusPartial   = "partiellement payée"
	InvoiceStatusPaid      = "payée"
	InvoiceStatusOverdue   = "en retard"
	InvoiceStatusCancelled = "annulée"
)

const (
	QuotationStatusDraft    = "brouillon"
	QuotationStatusSent     = "envoyé"
	QuotationStatusAccepted = "accepté"
	QuotationStatusRejected = "refusé"
	QuotationStatusExpired  = "expiré"
)

const (
	DeliveryNoteStatusPreparing = "en_preparation"
	DeliveryNoteStatusShipped   = "expédié"
	DeliveryNoteStatusDelivered = "livré"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSeller  = "vendeur"
)
