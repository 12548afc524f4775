package processor

// Payload shapes for the five event types. Optional fields are pointers so
// "absent" is distinguishable from "empty"; absent fields are omitted from
// the resulting SQL statements entirely.

// AddressPayload is one entry of a profile or trait address list.
type AddressPayload struct {
	Type        *string `json:"type" validate:"required"`
	StreetAddr1 *string `json:"streetAddr1" validate:"required"`
	StreetAddr2 *string `json:"streetAddr2"`
	City        *string `json:"city" validate:"required"`
	StateCode   *string `json:"stateCode" validate:"required"`
	Zip         *string `json:"zip" validate:"required"`
	CountryCode *string `json:"countryCode"`
}

// ProfilePayload is shared by the create-profile and update-profile events.
// Create additionally requires email, firstName and lastName; those checks
// live in validateCreateProfile.
type ProfilePayload struct {
	UserID                 int64            `json:"userId" validate:"required,min=1"`
	Email                  *string          `json:"email" validate:"omitempty,email"`
	Handle                 *string          `json:"handle"`
	UserHandle             *string          `json:"userHandle"`
	FirstName              *string          `json:"firstName"`
	LastName               *string          `json:"lastName"`
	Status                 *string          `json:"status"`
	OtherLangName          *string          `json:"otherLangName"`
	Description            *string          `json:"description"`
	HomeCountryCode        *string          `json:"homeCountryCode"`
	CompetitionCountryCode *string          `json:"competitionCountryCode"`
	PhotoURL               *string          `json:"photoURL" validate:"omitempty,uri"`
	Addresses              []AddressPayload `json:"addresses" validate:"omitempty,dive"`
}

// HandleValue resolves the member handle: handle wins, userHandle is the
// fallback, empty strings count as absent.
func (p *ProfilePayload) HandleValue() string {
	if p.Handle != nil && *p.Handle != "" {
		return *p.Handle
	}
	if p.UserHandle != nil && *p.UserHandle != "" {
		return *p.UserHandle
	}
	return ""
}

// PhotoPayload is the update-photo event payload.
type PhotoPayload struct {
	UserID   int64  `json:"userId" validate:"required,min=1"`
	PhotoURL string `json:"photoURL" validate:"required,uri"`
}

// TraitData is the single entry of a trait event's data array. It carries a
// subset of the profile fields plus an address list.
type TraitData struct {
	Country   *string          `json:"country"`
	FirstName *string          `json:"firstName"`
	LastName  *string          `json:"lastName"`
	Status    *string          `json:"status"`
	Email     *string          `json:"email" validate:"omitempty,email"`
	Addresses []AddressPayload `json:"addresses" validate:"omitempty,dive"`
}

// TraitPayload is the create-trait/update-trait event payload.
type TraitPayload struct {
	UserID  int64  `json:"userId" validate:"required,min=1"`
	TraitID string `json:"traitId" validate:"required"`
	Traits  struct {
		Data []TraitData `json:"data" validate:"required,len=1,dive"`
	} `json:"traits"`
}

// EmailChangePayload is the email-change-verification event payload.
type EmailChangePayload struct {
	Data struct {
		UserHandle *string `json:"userHandle" validate:"required"`
	} `json:"data"`
	Recipients []string `json:"recipients" validate:"required,len=1"`
}
