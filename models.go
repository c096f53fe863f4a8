package upkeep

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auditable is implemented by entities that carry creation/modification
// stamps. Creation fields are immutable once the entity is inserted.
type Auditable interface {
	StampCreated(at time.Time, by *uuid.UUID)
	StampModified(at time.Time, by *uuid.UUID)
	CreationStamp() (time.Time, *uuid.UUID)
	RestoreCreationStamp(at time.Time, by *uuid.UUID)
}

// SoftDeletable is implemented by entities whose deletes are converted into
// logical deletes. Soft-deleted rows stay out of default-scope reads.
type SoftDeletable interface {
	MarkDeleted(at time.Time, by *uuid.UUID)
	Deleted() bool
}

// Stamps carries the audit and soft-delete bookkeeping columns shared by the
// domain entities. The deleted_at column uses bun's soft-delete semantics so
// every select excludes deleted rows unless a query opts in.
type Stamps struct {
	CreatedAt  time.Time  `bun:"created_at,notnull" json:"created_at"`
	CreatedBy  *uuid.UUID `bun:"created_by,type:uuid" json:"created_by,omitempty"`
	ModifiedAt *time.Time `bun:"modified_at,nullzero" json:"modified_at,omitempty"`
	ModifiedBy *uuid.UUID `bun:"modified_by,type:uuid" json:"modified_by,omitempty"`
	IsDeleted  bool       `bun:"is_deleted,notnull,default:false" json:"is_deleted,omitempty"`
	DeletedAt  *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
	DeletedBy  *uuid.UUID `bun:"deleted_by,type:uuid" json:"deleted_by,omitempty"`
}

func (s *Stamps) StampCreated(at time.Time, by *uuid.UUID) {
	s.CreatedAt = at
	s.CreatedBy = by
	s.ModifiedAt = nil
	s.ModifiedBy = nil
}

func (s *Stamps) StampModified(at time.Time, by *uuid.UUID) {
	s.ModifiedAt = &at
	s.ModifiedBy = by
}

func (s *Stamps) CreationStamp() (time.Time, *uuid.UUID) {
	return s.CreatedAt, s.CreatedBy
}

func (s *Stamps) RestoreCreationStamp(at time.Time, by *uuid.UUID) {
	s.CreatedAt = at
	s.CreatedBy = by
}

func (s *Stamps) MarkDeleted(at time.Time, by *uuid.UUID) {
	s.IsDeleted = true
	s.DeletedAt = &at
	s.DeletedBy = by
}

func (s *Stamps) Deleted() bool {
	return s.IsDeleted
}

var (
	_ Auditable     = (*Stamps)(nil)
	_ SoftDeletable = (*Stamps)(nil)
)

// SubscriptionStatus is the organization's billing tier
type SubscriptionStatus = string

const (
	SubscriptionFree     SubscriptionStatus = "free"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// HouseRole is a member's role within a house
type HouseRole = string

const (
	HouseRoleOwner        HouseRole = "owner"
	HouseRoleCollaborator HouseRole = "collaborator"
	HouseRoleTenant       HouseRole = "tenant"
)

// InvitationStatus tracks house membership invitations
type InvitationStatus = string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// User is the identity record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                    uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email                 string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Name                  string     `bun:"name,notnull" json:"name,omitempty"`
	PasswordHash          string     `bun:"password_hash,notnull" json:"-"`
	DefaultOrganizationID *uuid.UUID `bun:"default_organization_id,type:uuid" json:"default_organization_id,omitempty"`

	Stamps
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Organization owns houses; every user gets exactly one default organization
// on registration.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`

	ID                    uuid.UUID          `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Name                  string             `bun:"name,notnull" json:"name,omitempty"`
	IsDefault             bool               `bun:"is_default,notnull,default:false" json:"is_default,omitempty"`
	OwnerID               uuid.UUID          `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	SubscriptionStatus    SubscriptionStatus `bun:"subscription_status,notnull" json:"subscription_status,omitempty"`
	SubscriptionStartDate *time.Time         `bun:"subscription_start_date,nullzero" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `bun:"subscription_end_date,nullzero" json:"subscription_end_date,omitempty"`

	Stamps
}

// House groups devices under an organization
type House struct {
	bun.BaseModel `bun:"table:houses,alias:hse"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Name           string    `bun:"name,notnull" json:"name,omitempty"`
	Address        string    `bun:"address" json:"address,omitempty"`
	ZipCode        string    `bun:"zip_code" json:"zip_code,omitempty"`
	City           string    `bun:"city" json:"city,omitempty"`
	Country        string    `bun:"country" json:"country,omitempty"`
	OrganizationID uuid.UUID `bun:"organization_id,notnull,type:uuid" json:"organization_id,omitempty"`

	Stamps
}

// HouseMember links a user to a house with a role and invitation state
type HouseMember struct {
	bun.BaseModel `bun:"table:house_members,alias:hsm"`

	ID         uuid.UUID        `bun:"id,pk,type:uuid" json:"id,omitempty"`
	HouseID    uuid.UUID        `bun:"house_id,notnull,type:uuid" json:"house_id,omitempty"`
	UserID     uuid.UUID        `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Role       HouseRole        `bun:"member_role,notnull" json:"member_role,omitempty"`
	Status     InvitationStatus `bun:"status,notnull" json:"status,omitempty"`
	AcceptedAt *time.Time       `bun:"accepted_at,nullzero" json:"accepted_at,omitempty"`

	Stamps
}

// Device is an appliance tracked within a house
type Device struct {
	bun.BaseModel `bun:"table:devices,alias:dev"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Name        string     `bun:"name,notnull" json:"name,omitempty"`
	Type        string     `bun:"device_type,notnull" json:"device_type,omitempty"`
	InstallDate *time.Time `bun:"install_date,nullzero" json:"install_date,omitempty"`
	Metadata    string     `bun:"metadata" json:"metadata,omitempty"`
	HouseID     uuid.UUID  `bun:"house_id,notnull,type:uuid" json:"house_id,omitempty"`

	Stamps
}

// Periodicity is the maintenance recurrence schedule
type Periodicity = string

const (
	PeriodicityAnnual     Periodicity = "annual"
	PeriodicitySemestrial Periodicity = "semestrial"
	PeriodicityQuarterly  Periodicity = "quarterly"
	PeriodicityMonthly    Periodicity = "monthly"
	PeriodicityCustom     Periodicity = "custom"
)

// MaintenanceType is a recurring maintenance schedule for a device
type MaintenanceType struct {
	bun.BaseModel `bun:"table:maintenance_types,alias:mtt"`

	ID                 uuid.UUID   `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Name               string      `bun:"name,notnull" json:"name,omitempty"`
	Periodicity        Periodicity `bun:"periodicity,notnull" json:"periodicity,omitempty"`
	CustomDays         *int        `bun:"custom_days,nullzero" json:"custom_days,omitempty"`
	ReminderEnabled    bool        `bun:"reminder_enabled,notnull,default:true" json:"reminder_enabled,omitempty"`
	ReminderDaysBefore int         `bun:"reminder_days_before,notnull,default:30" json:"reminder_days_before,omitempty"`
	DeviceID           uuid.UUID   `bun:"device_id,notnull,type:uuid" json:"device_id,omitempty"`

	Stamps
}

// MaintenanceInstance is one performed maintenance occurrence
type MaintenanceInstance struct {
	bun.BaseModel `bun:"table:maintenance_instances,alias:mti"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	MaintenanceTypeID uuid.UUID  `bun:"maintenance_type_id,notnull,type:uuid" json:"maintenance_type_id,omitempty"`
	PerformedAt       *time.Time `bun:"performed_at,nullzero" json:"performed_at,omitempty"`
	Cost              float64    `bun:"cost" json:"cost,omitempty"`
	Notes             string     `bun:"notes" json:"notes,omitempty"`

	Stamps
}

// RefreshToken is a single-use capability granting one token refresh. Revoked
// tokens are retained (up to the per-user cap) for replay detection.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	UserID          uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Token           string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt       time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at,omitempty"`
	CreatedByIP     string     `bun:"created_by_ip" json:"created_by_ip,omitempty"`
	RevokedAt       *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	RevokedByIP     string     `bun:"revoked_by_ip" json:"revoked_by_ip,omitempty"`
	ReplacedByToken string     `bun:"replaced_by_token" json:"-"`
	ReasonRevoked   string     `bun:"reason_revoked" json:"reason_revoked,omitempty"`
}

// SecretFields lists the columns whose values are live credentials and must
// never be copied into the audit trail.
func (t *RefreshToken) SecretFields() []string {
	return []string{"Token", "ReplacedByToken"}
}

// Expired reports whether the token's expiry has passed
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active is true while the token is neither revoked nor expired
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && !t.Expired(now)
}

// Audit actions as performed. "Deleted" always means converted to soft-delete
// for entities that support it.
const (
	ActionAdded    = "Added"
	ActionModified = "Modified"
	ActionDeleted  = "Deleted"
)

// AuditLog is the append-only record of one entity mutation. Rows are written
// once after the primary save commits and never updated or deleted.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:adt"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	EntityType        string     `bun:"entity_type,notnull" json:"entity_type,omitempty"`
	EntityID          string     `bun:"entity_id,notnull" json:"entity_id,omitempty"`
	Action            string     `bun:"action,notnull" json:"action,omitempty"`
	UserID            *uuid.UUID `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	Username          string     `bun:"username" json:"username,omitempty"`
	Timestamp         time.Time  `bun:"timestamp,notnull" json:"timestamp,omitempty"`
	OldValues         string     `bun:"old_values" json:"old_values,omitempty"`
	NewValues         string     `bun:"new_values" json:"new_values,omitempty"`
	ChangedProperties string     `bun:"changed_properties" json:"changed_properties,omitempty"`
	IPAddress         string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent         string     `bun:"user_agent" json:"user_agent,omitempty"`
}
