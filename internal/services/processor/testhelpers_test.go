package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/cornjacket/member-legacy-processor/internal/legacy"
)

var errForced = fmt.Errorf("forced database error")

// fakeDB is an in-memory stand-in for the legacy tables. fakeRepo snapshots
// it before each transaction and restores the snapshot when the transaction
// function fails, mirroring a rollback.
type fakeDB struct {
	users      map[int64]userRec
	emails     map[int64]string // user id → primary address
	coders     map[int64]coderRec
	addresses  map[int64]addrRec
	userAddrs  map[int64][]int64 // user id → address ids
	images     map[int64]string  // image id → link
	coderImage map[int64]int64   // coder id → displayed image id

	countryByISO3 map[string]string
	countryByName map[string]string
	addressTypes  map[string]int64

	nextAddressID int64

	// failOn forces the named Store method to fail.
	failOn string
}

type userRec struct {
	FirstName, LastName, Handle, Status, OtherLangName *string
}

type coderRec struct {
	Quote, HomeCountryCode, CompCountryCode *string
}

type addrRec struct {
	TypeID                                          int64
	Address1, Address2, City, StateCode, Zip, CCode *string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:      make(map[int64]userRec),
		emails:     make(map[int64]string),
		coders:     make(map[int64]coderRec),
		addresses:  make(map[int64]addrRec),
		userAddrs:  make(map[int64][]int64),
		images:     make(map[int64]string),
		coderImage: make(map[int64]int64),
		countryByISO3: map[string]string{
			"USA": "840",
			"DEU": "276",
		},
		countryByName: map[string]string{
			"UNITED STATES": "840",
			"GERMANY":       "276",
		},
		addressTypes: map[string]int64{
			"HOME":    1,
			"BILLING": 2,
		},
		nextAddressID: 500,
	}
}

func (db *fakeDB) clone() *fakeDB {
	c := newFakeDB()
	c.nextAddressID = db.nextAddressID
	c.failOn = db.failOn
	for k, v := range db.users {
		c.users[k] = v
	}
	for k, v := range db.emails {
		c.emails[k] = v
	}
	for k, v := range db.coders {
		c.coders[k] = v
	}
	for k, v := range db.addresses {
		c.addresses[k] = v
	}
	for k, v := range db.userAddrs {
		c.userAddrs[k] = append([]int64(nil), v...)
	}
	for k, v := range db.images {
		c.images[k] = v
	}
	for k, v := range db.coderImage {
		c.coderImage[k] = v
	}
	return c
}

func (db *fakeDB) restore(snapshot *fakeDB) {
	db.users = snapshot.users
	db.emails = snapshot.emails
	db.coders = snapshot.coders
	db.addresses = snapshot.addresses
	db.userAddrs = snapshot.userAddrs
	db.images = snapshot.images
	db.coderImage = snapshot.coderImage
	db.nextAddressID = snapshot.nextAddressID
}

func (db *fakeDB) seedUser(userID int64, handle string) {
	h := handle
	db.users[userID] = userRec{Handle: &h}
}

// fakeRepo implements legacy.Repository with rollback semantics.
type fakeRepo struct {
	db      *fakeDB
	txCount int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{db: newFakeDB()}
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(legacy.Store) error) error {
	r.txCount++
	snapshot := r.db.clone()
	if err := fn(&fakeStore{db: r.db}); err != nil {
		r.db.restore(snapshot)
		return err
	}
	return nil
}

// fakeStore implements legacy.Store against fakeDB.
type fakeStore struct {
	db *fakeDB
}

func (s *fakeStore) fail(method string) error {
	if s.db.failOn == method {
		return errForced
	}
	return nil
}

func (s *fakeStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	if err := s.fail("UserExists"); err != nil {
		return false, err
	}
	_, ok := s.db.users[userID]
	return ok, nil
}

func (s *fakeStore) CountHandles(ctx context.Context, handle string) (int, error) {
	if err := s.fail("CountHandles"); err != nil {
		return 0, err
	}
	count := 0
	for _, u := range s.db.users {
		if u.Handle != nil && strings.EqualFold(*u.Handle, handle) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) UserIDByHandle(ctx context.Context, handle string) (int64, bool, error) {
	if err := s.fail("UserIDByHandle"); err != nil {
		return 0, false, err
	}
	for id, u := range s.db.users {
		if u.Handle != nil && *u.Handle == handle {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (s *fakeStore) InsertUser(ctx context.Context, row legacy.UserRow) error {
	if err := s.fail("InsertUser"); err != nil {
		return err
	}
	if _, ok := s.db.users[row.UserID]; ok {
		return fmt.Errorf("duplicate key user_id=%d", row.UserID)
	}
	s.db.users[row.UserID] = userRec{
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		Handle:        row.Handle,
		Status:        row.Status,
		OtherLangName: row.OtherLangName,
	}
	return nil
}

func (s *fakeStore) UpdateUser(ctx context.Context, userID int64, upd legacy.UserUpdate) error {
	if err := s.fail("UpdateUser"); err != nil {
		return err
	}
	u := s.db.users[userID]
	if upd.FirstName != nil {
		u.FirstName = upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = upd.LastName
	}
	if upd.Status != nil {
		u.Status = upd.Status
	}
	if upd.OtherLangName != nil {
		u.OtherLangName = upd.OtherLangName
	}
	s.db.users[userID] = u
	return nil
}

func (s *fakeStore) InsertPrimaryEmail(ctx context.Context, userID int64, address string) error {
	if err := s.fail("InsertPrimaryEmail"); err != nil {
		return err
	}
	s.db.emails[userID] = address
	return nil
}

func (s *fakeStore) UpdatePrimaryEmail(ctx context.Context, userID int64, address string) error {
	if err := s.fail("UpdatePrimaryEmail"); err != nil {
		return err
	}
	if _, ok := s.db.emails[userID]; ok {
		s.db.emails[userID] = address
	}
	return nil
}

func (s *fakeStore) InsertCoder(ctx context.Context, row legacy.CoderRow) error {
	if err := s.fail("InsertCoder"); err != nil {
		return err
	}
	s.db.coders[row.CoderID] = coderRec{
		Quote:           row.Quote,
		HomeCountryCode: row.HomeCountryCode,
		CompCountryCode: row.CompCountryCode,
	}
	return nil
}

func (s *fakeStore) UpdateCoder(ctx context.Context, coderID int64, upd legacy.CoderUpdate) error {
	if err := s.fail("UpdateCoder"); err != nil {
		return err
	}
	c := s.db.coders[coderID]
	if upd.Quote != nil {
		c.Quote = upd.Quote
	}
	if upd.HomeCountryCode != nil {
		c.HomeCountryCode = upd.HomeCountryCode
	}
	if upd.CompCountryCode != nil {
		c.CompCountryCode = upd.CompCountryCode
	}
	s.db.coders[coderID] = c
	return nil
}

func (s *fakeStore) AddressTypeID(ctx context.Context, description string) (int64, bool, error) {
	if err := s.fail("AddressTypeID"); err != nil {
		return 0, false, err
	}
	id, ok := s.db.addressTypes[strings.ToUpper(description)]
	return id, ok, nil
}

func (s *fakeStore) NextAddressID(ctx context.Context) (int64, error) {
	if err := s.fail("NextAddressID"); err != nil {
		return 0, err
	}
	s.db.nextAddressID++
	return s.db.nextAddressID, nil
}

func (s *fakeStore) InsertAddress(ctx context.Context, row legacy.AddressRow) error {
	if err := s.fail("InsertAddress"); err != nil {
		return err
	}
	s.db.addresses[row.AddressID] = addrRec{
		TypeID:    row.AddressTypeID,
		Address1:  row.Address1,
		Address2:  row.Address2,
		City:      row.City,
		StateCode: row.StateCode,
		Zip:       row.Zip,
		CCode:     row.CountryCode,
	}
	return nil
}

func (s *fakeStore) LinkUserAddress(ctx context.Context, userID, addressID int64) error {
	if err := s.fail("LinkUserAddress"); err != nil {
		return err
	}
	s.db.userAddrs[userID] = append(s.db.userAddrs[userID], addressID)
	return nil
}

func (s *fakeStore) UserAddressIDs(ctx context.Context, userID int64) ([]int64, error) {
	if err := s.fail("UserAddressIDs"); err != nil {
		return nil, err
	}
	return append([]int64(nil), s.db.userAddrs[userID]...), nil
}

func (s *fakeStore) DeleteUserAddresses(ctx context.Context, userID int64, addressIDs []int64) error {
	if err := s.fail("DeleteUserAddresses"); err != nil {
		return err
	}
	delete(s.db.userAddrs, userID)
	for _, id := range addressIDs {
		delete(s.db.addresses, id)
	}
	return nil
}

func (s *fakeStore) CurrentImageID(ctx context.Context, coderID int64) (int64, bool, error) {
	if err := s.fail("CurrentImageID"); err != nil {
		return 0, false, err
	}
	id, ok := s.db.coderImage[coderID]
	return id, ok, nil
}

func (s *fakeStore) MaxImageID(ctx context.Context) (int64, bool, error) {
	if err := s.fail("MaxImageID"); err != nil {
		return 0, false, err
	}
	var max int64
	found := false
	for id := range s.db.images {
		if !found || id > max {
			max = id
			found = true
		}
	}
	return max, found, nil
}

func (s *fakeStore) InsertImage(ctx context.Context, imageID int64, link string) error {
	if err := s.fail("InsertImage"); err != nil {
		return err
	}
	s.db.images[imageID] = link
	return nil
}

func (s *fakeStore) UpdateImageLink(ctx context.Context, imageID int64, link string) error {
	if err := s.fail("UpdateImageLink"); err != nil {
		return err
	}
	s.db.images[imageID] = link
	return nil
}

func (s *fakeStore) LinkCoderImage(ctx context.Context, coderID, imageID int64) error {
	if err := s.fail("LinkCoderImage"); err != nil {
		return err
	}
	s.db.coderImage[coderID] = imageID
	return nil
}

func (s *fakeStore) CountryCodeByISO3(ctx context.Context, isoAlpha3 string) (string, bool, error) {
	if err := s.fail("CountryCodeByISO3"); err != nil {
		return "", false, err
	}
	code, ok := s.db.countryByISO3[strings.ToUpper(isoAlpha3)]
	return code, ok, nil
}

func (s *fakeStore) CountryCodeByName(ctx context.Context, name string) (string, bool, error) {
	if err := s.fail("CountryCodeByName"); err != nil {
		return "", false, err
	}
	code, ok := s.db.countryByName[strings.ToUpper(name)]
	return code, ok, nil
}
