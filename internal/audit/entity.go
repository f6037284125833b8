package audit

// Entity is implemented by anything whose mutations are audited. The
// entity's mutation path calls LogCreated, LogUpdated or LogDeleted.
type Entity interface {
	// AuditKind is the short type name, e.g. "Client".
	AuditKind() string
	AuditID() string
	// AuditAttributes is a snapshot of the entity's current field values.
	AuditAttributes() map[string]any
}
