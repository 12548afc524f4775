// Package legacy provides the data-access layer for the legacy member
// tables (user, email, coder, address, image and their xref tables).
// All mutations run inside a single transaction obtained through
// Repository.InTx; every value derived from an event payload is bound as
// a statement parameter.
package legacy

import "context"

// Repository exposes the transaction boundary of the legacy store.
type Repository interface {
	// InTx acquires a pooled connection, begins a transaction and invokes fn
	// with a transaction-scoped Store. The transaction is committed if fn
	// returns nil and rolled back otherwise; the connection is always
	// released.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Store is the set of row operations the mapping engine performs. All
// methods are scoped to the transaction they were obtained from. Lookup
// methods report "no row" through their boolean result; that is a normal
// outcome, not an error.
type Store interface {
	// User identity
	UserExists(ctx context.Context, userID int64) (bool, error)
	CountHandles(ctx context.Context, handle string) (int, error)
	UserIDByHandle(ctx context.Context, handle string) (int64, bool, error)
	InsertUser(ctx context.Context, row UserRow) error
	UpdateUser(ctx context.Context, userID int64, upd UserUpdate) error

	// Email (one primary row per user; updated in place, never re-inserted)
	InsertPrimaryEmail(ctx context.Context, userID int64, address string) error
	UpdatePrimaryEmail(ctx context.Context, userID int64, address string) error

	// Coder (1:1 extension of user)
	InsertCoder(ctx context.Context, row CoderRow) error
	UpdateCoder(ctx context.Context, coderID int64, upd CoderUpdate) error

	// Addresses (owned through user_address_xref; replaced wholesale)
	AddressTypeID(ctx context.Context, description string) (int64, bool, error)
	NextAddressID(ctx context.Context) (int64, error)
	InsertAddress(ctx context.Context, row AddressRow) error
	LinkUserAddress(ctx context.Context, userID, addressID int64) error
	UserAddressIDs(ctx context.Context, userID int64) ([]int64, error)
	DeleteUserAddresses(ctx context.Context, userID int64, addressIDs []int64) error

	// Images (at most one display_flag=1 xref per coder)
	CurrentImageID(ctx context.Context, coderID int64) (int64, bool, error)
	MaxImageID(ctx context.Context) (int64, bool, error)
	InsertImage(ctx context.Context, imageID int64, link string) error
	UpdateImageLink(ctx context.Context, imageID int64, link string) error
	LinkCoderImage(ctx context.Context, coderID, imageID int64) error

	// Reference data
	CountryCodeByISO3(ctx context.Context, isoAlpha3 string) (string, bool, error)
	CountryCodeByName(ctx context.Context, name string) (string, bool, error)
}

// UserRow holds the columns for a new user row. Nil optional fields are
// omitted from the insert entirely.
type UserRow struct {
	UserID        int64
	FirstName     *string
	LastName      *string
	Handle        *string
	Status        *string
	OtherLangName *string
}

// UserUpdate holds the updatable user columns. The handle is write-once
// and deliberately not representable here.
type UserUpdate struct {
	FirstName     *string
	LastName      *string
	Status        *string
	OtherLangName *string
}

// IsEmpty reports whether the update carries no effective fields.
func (u UserUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Status == nil && u.OtherLangName == nil
}

// CoderRow holds the columns for a new coder row. display_quote is always
// set to 1 on insert.
type CoderRow struct {
	CoderID         int64
	Quote           *string
	HomeCountryCode *string
	CompCountryCode *string
}

// CoderUpdate holds the updatable coder columns.
type CoderUpdate struct {
	Quote           *string
	HomeCountryCode *string
	CompCountryCode *string
}

// IsEmpty reports whether the update carries no effective fields.
func (u CoderUpdate) IsEmpty() bool {
	return u.Quote == nil && u.HomeCountryCode == nil && u.CompCountryCode == nil
}

// AddressRow holds the columns for a new address row.
type AddressRow struct {
	AddressID     int64
	AddressTypeID int64
	Address1      *string
	Address2      *string
	City          *string
	StateCode     *string
	Zip           *string
	CountryCode   *string
}
