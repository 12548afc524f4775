package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/member-legacy-processor/internal/domain/events"
	"github.com/cornjacket/member-legacy-processor/internal/legacy"
)

// Image ids are assigned max+1; an empty image table starts here.
const firstImageID = 1000

// Processor maps validated profile-change events onto legacy-table
// mutations. Each handler runs as one transaction: either every row change
// of an event lands, or none do.
type Processor struct {
	repo             legacy.Repository
	basicInfoTraitID string
	logger           *slog.Logger
}

// NewProcessor creates a new Processor.
func NewProcessor(repo legacy.Repository, basicInfoTraitID string, logger *slog.Logger) *Processor {
	return &Processor{
		repo:             repo,
		basicInfoTraitID: basicInfoTraitID,
		logger:           logger.With("component", "processor"),
	}
}

// CreateProfile creates the user, email, coder, address and image rows for
// a new member. When the payload carries a handle that already exists
// (case-insensitive) the event is a no-op: replayed create events must not
// fail.
func (p *Processor) CreateProfile(ctx context.Context, env *events.Envelope) error {
	var payload ProfilePayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}
	if err := validateCreateProfile(&payload); err != nil {
		return err
	}

	handle := payload.HandleValue()

	return p.repo.InTx(ctx, func(s legacy.Store) error {
		if handle != "" {
			count, err := s.CountHandles(ctx, handle)
			if err != nil {
				return err
			}
			if count > 0 {
				p.logger.Info("user with handle already exists, skipping create",
					"user_id", payload.UserID,
					"handle", handle,
				)
				return nil
			}
		}

		if err := p.insertUser(ctx, s, &payload, handle); err != nil {
			return err
		}
		return p.insertCoder(ctx, s, &payload)
	})
}

// UpdateProfile applies a profile update to the user, email, coder and
// address rows. A missing user is an expected soft miss: logged, no rows
// touched, no error returned.
func (p *Processor) UpdateProfile(ctx context.Context, env *events.Envelope) error {
	var payload ProfilePayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	return p.repo.InTx(ctx, func(s legacy.Store) error {
		exists, err := s.UserExists(ctx, payload.UserID)
		if err != nil {
			return err
		}
		if !exists {
			p.logger.Error("user does not exist", "user_id", payload.UserID)
			return nil
		}

		if payload.Email != nil {
			if err := s.UpdatePrimaryEmail(ctx, payload.UserID, *payload.Email); err != nil {
				return err
			}
		}

		if payload.Addresses != nil {
			if err := p.replaceAddresses(ctx, s, payload.UserID, payload.Addresses, nil, false); err != nil {
				return err
			}
		}

		upd := legacy.UserUpdate{
			FirstName:     payload.FirstName,
			LastName:      payload.LastName,
			Status:        mapStatus(payload.Status),
			OtherLangName: payload.OtherLangName,
		}
		if upd.IsEmpty() {
			p.logger.Warn("no user fields to update", "user_id", payload.UserID)
		} else if err := s.UpdateUser(ctx, payload.UserID, upd); err != nil {
			return err
		}

		if err := p.updateCoder(ctx, s, &payload); err != nil {
			return err
		}

		if payload.PhotoURL != nil && *payload.PhotoURL != "" {
			return p.updateCoderPhoto(ctx, s, payload.UserID, *payload.PhotoURL)
		}
		return nil
	})
}

// UpdatePhoto replaces the member's current photo. The image row is reused
// when one is already displayed; only its link changes.
func (p *Processor) UpdatePhoto(ctx context.Context, env *events.Envelope) error {
	var payload PhotoPayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	return p.repo.InTx(ctx, func(s legacy.Store) error {
		exists, err := s.UserExists(ctx, payload.UserID)
		if err != nil {
			return err
		}
		if !exists {
			p.logger.Error("user does not exist", "user_id", payload.UserID)
			return nil
		}
		return p.updateCoderPhoto(ctx, s, payload.UserID, payload.PhotoURL)
	})
}

// UpdateTrait applies a basic-info trait to the member profile. Any other
// trait id is skipped. Unlike the profile handlers the country arrives as
// a display name and is resolved through the country lookup by name; an
// unresolved country simply omits the country columns.
func (p *Processor) UpdateTrait(ctx context.Context, env *events.Envelope) error {
	var payload TraitPayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	if payload.TraitID != p.basicInfoTraitID {
		p.logger.Error("message is not for the basic info trait",
			"user_id", payload.UserID,
			"trait_id", payload.TraitID,
		)
		return nil
	}

	data := payload.Traits.Data[0]

	return p.repo.InTx(ctx, func(s legacy.Store) error {
		exists, err := s.UserExists(ctx, payload.UserID)
		if err != nil {
			return err
		}
		if !exists {
			p.logger.Error("user does not exist", "user_id", payload.UserID)
			return nil
		}

		var countryCode *string
		if data.Country != nil && *data.Country != "" {
			code, ok, err := s.CountryCodeByName(ctx, *data.Country)
			if err != nil {
				return err
			}
			if ok {
				countryCode = &code
			} else {
				p.logger.Warn("country not found", "country", *data.Country)
			}
		}

		if data.Email != nil {
			if err := s.UpdatePrimaryEmail(ctx, payload.UserID, *data.Email); err != nil {
				return err
			}
		}

		if data.Addresses != nil {
			if err := p.replaceAddresses(ctx, s, payload.UserID, data.Addresses, countryCode, true); err != nil {
				return err
			}
		}

		upd := legacy.UserUpdate{
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Status:    mapStatus(data.Status),
		}
		if upd.IsEmpty() {
			p.logger.Warn("no user fields to update", "user_id", payload.UserID)
		} else if err := s.UpdateUser(ctx, payload.UserID, upd); err != nil {
			return err
		}

		cupd := legacy.CoderUpdate{
			HomeCountryCode: countryCode,
			CompCountryCode: countryCode,
		}
		if cupd.IsEmpty() {
			p.logger.Warn("no coder fields to update", "user_id", payload.UserID)
			return nil
		}
		return s.UpdateCoder(ctx, payload.UserID, cupd)
	})
}

// VerifyEmailChange points the member's primary email row at the verified
// address. The member is looked up by handle; a miss is logged and
// swallowed.
func (p *Processor) VerifyEmailChange(ctx context.Context, env *events.Envelope) error {
	var payload EmailChangePayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	handle := *payload.Data.UserHandle
	address := payload.Recipients[0]

	return p.repo.InTx(ctx, func(s legacy.Store) error {
		userID, ok, err := s.UserIDByHandle(ctx, handle)
		if err != nil {
			return err
		}
		if !ok {
			p.logger.Error("user does not exist", "handle", handle)
			return nil
		}
		return s.UpdatePrimaryEmail(ctx, userID, address)
	})
}

// insertUser creates the user row, its primary email row and the address
// rows of a create-profile event.
func (p *Processor) insertUser(ctx context.Context, s legacy.Store, payload *ProfilePayload, handle string) error {
	row := legacy.UserRow{
		UserID:        payload.UserID,
		FirstName:     payload.FirstName,
		LastName:      payload.LastName,
		Status:        mapStatus(payload.Status),
		OtherLangName: payload.OtherLangName,
	}
	if handle != "" {
		row.Handle = &handle
	}
	if err := s.InsertUser(ctx, row); err != nil {
		return err
	}

	if err := s.InsertPrimaryEmail(ctx, payload.UserID, *payload.Email); err != nil {
		return err
	}

	return p.insertAddresses(ctx, s, payload.UserID, payload.Addresses, nil, false)
}

// insertCoder creates the coder row and, when a photo is present, the
// image rows of a create-profile event.
func (p *Processor) insertCoder(ctx context.Context, s legacy.Store, payload *ProfilePayload) error {
	home, err := p.resolveISO3(ctx, s, payload.HomeCountryCode)
	if err != nil {
		return err
	}
	comp, err := p.resolveISO3(ctx, s, payload.CompetitionCountryCode)
	if err != nil {
		return err
	}

	row := legacy.CoderRow{
		CoderID:         payload.UserID,
		Quote:           payload.Description,
		HomeCountryCode: home,
		CompCountryCode: comp,
	}
	if err := s.InsertCoder(ctx, row); err != nil {
		return err
	}

	if payload.PhotoURL != nil && *payload.PhotoURL != "" {
		return p.createCoderImage(ctx, s, payload.UserID, *payload.PhotoURL)
	}
	return nil
}

// updateCoder applies the coder columns of a profile update.
func (p *Processor) updateCoder(ctx context.Context, s legacy.Store, payload *ProfilePayload) error {
	home, err := p.resolveISO3(ctx, s, payload.HomeCountryCode)
	if err != nil {
		return err
	}
	comp, err := p.resolveISO3(ctx, s, payload.CompetitionCountryCode)
	if err != nil {
		return err
	}

	upd := legacy.CoderUpdate{
		Quote:           payload.Description,
		HomeCountryCode: home,
		CompCountryCode: comp,
	}
	if upd.IsEmpty() {
		p.logger.Warn("no coder fields to update", "user_id", payload.UserID)
		return nil
	}
	return s.UpdateCoder(ctx, payload.UserID, upd)
}

// resolveISO3 maps an ISO-alpha-3 code to the legacy country code. Absent
// and unmapped codes resolve to nil so the column is omitted.
func (p *Processor) resolveISO3(ctx context.Context, s legacy.Store, iso3 *string) (*string, error) {
	if iso3 == nil || *iso3 == "" {
		return nil, nil
	}
	code, ok, err := s.CountryCodeByISO3(ctx, *iso3)
	if err != nil {
		return nil, err
	}
	if !ok {
		p.logger.Warn("country code not found", "iso_alpha3_code", *iso3)
		return nil, nil
	}
	return &code, nil
}

// insertAddresses creates an address row and xref per payload address, in
// payload order. With overrideCountry set, countryCode replaces every
// per-address country: the trait path resolves one country for the whole
// list, and an unresolved country omits the column even when the payload
// carries one.
func (p *Processor) insertAddresses(ctx context.Context, s legacy.Store, userID int64, addresses []AddressPayload, countryCode *string, overrideCountry bool) error {
	for _, addr := range addresses {
		typeID, ok, err := s.AddressTypeID(ctx, deref(addr.Type))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown address type %q", deref(addr.Type))
		}

		addressID, err := s.NextAddressID(ctx)
		if err != nil {
			return err
		}

		row := legacy.AddressRow{
			AddressID:     addressID,
			AddressTypeID: typeID,
			Address1:      addr.StreetAddr1,
			Address2:      addr.StreetAddr2,
			City:          addr.City,
			StateCode:     addr.StateCode,
			Zip:           addr.Zip,
			CountryCode:   addr.CountryCode,
		}
		if overrideCountry {
			row.CountryCode = countryCode
		}
		if err := s.InsertAddress(ctx, row); err != nil {
			return err
		}
		if err := s.LinkUserAddress(ctx, userID, addressID); err != nil {
			return err
		}
	}
	return nil
}

// replaceAddresses deletes every address currently linked to the user and
// re-inserts the payload addresses. A full replace, never a merge.
func (p *Processor) replaceAddresses(ctx context.Context, s legacy.Store, userID int64, addresses []AddressPayload, countryCode *string, overrideCountry bool) error {
	existing, err := s.UserAddressIDs(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.DeleteUserAddresses(ctx, userID, existing); err != nil {
		return err
	}
	return p.insertAddresses(ctx, s, userID, addresses, countryCode, overrideCountry)
}

// updateCoderPhoto reuses the currently displayed image row when one
// exists, so a coder never accumulates more than one display xref.
func (p *Processor) updateCoderPhoto(ctx context.Context, s legacy.Store, coderID int64, photoURL string) error {
	imageID, ok, err := s.CurrentImageID(ctx, coderID)
	if err != nil {
		return err
	}
	if !ok {
		return p.createCoderImage(ctx, s, coderID, photoURL)
	}
	return s.UpdateImageLink(ctx, imageID, photoURL)
}

// createCoderImage assigns the next image id, inserts the image row and
// links it as the coder's displayed image.
func (p *Processor) createCoderImage(ctx context.Context, s legacy.Store, coderID int64, photoURL string) error {
	maxID, ok, err := s.MaxImageID(ctx)
	if err != nil {
		return err
	}
	imageID := int64(firstImageID)
	if ok {
		imageID = maxID + 1
	}

	if err := s.InsertImage(ctx, imageID, photoURL); err != nil {
		return err
	}
	return s.LinkCoderImage(ctx, coderID, imageID)
}

// mapStatus maps the event status to the single-char legacy status column:
// ACTIVE→A, UNVERIFIED→U, anything else→I. Absent stays absent.
func mapStatus(status *string) *string {
	if status == nil || *status == "" {
		return nil
	}
	var mapped string
	switch *status {
	case "ACTIVE":
		mapped = "A"
	case "UNVERIFIED":
		mapped = "U"
	default:
		mapped = "I"
	}
	return &mapped
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
