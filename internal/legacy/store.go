package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/member-legacy-processor/internal/domain/clock"
)

// Repo implements Repository using a pgx connection pool.
type Repo struct {
	pool        *pgxpool.Pool
	lockTimeout string
	logger      *slog.Logger
}

// NewRepo creates a new Repo. lockWaitMillis bounds how long write
// statements wait for contended row locks before the transaction fails.
func NewRepo(pool *pgxpool.Pool, lockWaitMillis int64, logger *slog.Logger) *Repo {
	return &Repo{
		pool:        pool,
		lockTimeout: fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockWaitMillis),
		logger:      logger.With("component", "legacy-store"),
	}
}

// InTx runs fn inside a single transaction. Statements in the transaction
// wait a bounded time for row locks instead of failing immediately.
func (r *Repo) InTx(ctx context.Context, fn func(Store) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error("transaction rollback failed", "error", rbErr)
		}
	}()

	if _, err = tx.Exec(ctx, r.lockTimeout); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err = fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements Store against a single open transaction.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := s.tx.QueryRow(ctx,
		`SELECT count(*) FROM "user" WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count users by id: %w", err)
	}
	return count > 0, nil
}

func (s *txStore) CountHandles(ctx context.Context, handle string) (int, error) {
	var count int
	err := s.tx.QueryRow(ctx,
		`SELECT count(*) FROM "user" WHERE upper(handle) = upper($1)`, handle,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by handle: %w", err)
	}
	return count, nil
}

func (s *txStore) UserIDByHandle(ctx context.Context, handle string) (int64, bool, error) {
	var userID int64
	err := s.tx.QueryRow(ctx,
		`SELECT user_id FROM "user" WHERE handle = $1`, handle,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find user by handle: %w", err)
	}
	return userID, true, nil
}

func (s *txStore) InsertUser(ctx context.Context, row UserRow) error {
	ins := newInsert(`"user"`)
	ins.add("user_id", row.UserID)
	ins.add("create_date", clock.Now())
	ins.addOpt("first_name", row.FirstName)
	ins.addOpt("last_name", row.LastName)
	ins.addOpt("handle", row.Handle)
	ins.addOpt("status", row.Status)
	ins.addOpt("name_in_another_language", row.OtherLangName)

	if _, err := s.tx.Exec(ctx, ins.sql(), ins.args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *txStore) UpdateUser(ctx context.Context, userID int64, upd UserUpdate) error {
	set := newUpdate()
	set.add("modify_date", clock.Now())
	set.addOpt("first_name", upd.FirstName)
	set.addOpt("last_name", upd.LastName)
	set.addOpt("status", upd.Status)
	set.addOpt("name_in_another_language", upd.OtherLangName)

	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE user_id = %s`, set.clause(), set.bind(userID))
	if _, err := s.tx.Exec(ctx, query, set.args...); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *txStore) InsertPrimaryEmail(ctx context.Context, userID int64, address string) error {
	query := `
		INSERT INTO email (user_id, email_id, email_type_id, address, create_date, modify_date, primary_ind, status_id)
		VALUES ($1, nextval('sequence_email_seq'), 1, $2, $3, $3, 1, 1)
	`
	if _, err := s.tx.Exec(ctx, query, userID, address, clock.Now()); err != nil {
		return fmt.Errorf("insert primary email: %w", err)
	}
	return nil
}

func (s *txStore) UpdatePrimaryEmail(ctx context.Context, userID int64, address string) error {
	query := `
		UPDATE email SET address = $1, modify_date = $2
		WHERE user_id = $3 AND email_type_id = 1 AND primary_ind = 1 AND status_id = 1
	`
	if _, err := s.tx.Exec(ctx, query, address, clock.Now(), userID); err != nil {
		return fmt.Errorf("update primary email: %w", err)
	}
	return nil
}

func (s *txStore) InsertCoder(ctx context.Context, row CoderRow) error {
	now := clock.Now()
	ins := newInsert("coder")
	ins.add("coder_id", row.CoderID)
	ins.add("member_since", now)
	ins.add("modify_date", now)
	ins.add("display_quote", 1)
	ins.addOpt("quote", row.Quote)
	ins.addOpt("home_country_code", row.HomeCountryCode)
	ins.addOpt("comp_country_code", row.CompCountryCode)

	if _, err := s.tx.Exec(ctx, ins.sql(), ins.args...); err != nil {
		return fmt.Errorf("insert coder: %w", err)
	}
	return nil
}

func (s *txStore) UpdateCoder(ctx context.Context, coderID int64, upd CoderUpdate) error {
	set := newUpdate()
	set.add("modify_date", clock.Now())
	set.add("display_quote", 1)
	set.addOpt("quote", upd.Quote)
	set.addOpt("home_country_code", upd.HomeCountryCode)
	set.addOpt("comp_country_code", upd.CompCountryCode)

	query := fmt.Sprintf(`UPDATE coder SET %s WHERE coder_id = %s`, set.clause(), set.bind(coderID))
	if _, err := s.tx.Exec(ctx, query, set.args...); err != nil {
		return fmt.Errorf("update coder: %w", err)
	}
	return nil
}

func (s *txStore) AddressTypeID(ctx context.Context, description string) (int64, bool, error) {
	var typeID int64
	err := s.tx.QueryRow(ctx,
		`SELECT address_type_id FROM address_type_lu WHERE upper(address_type_desc) = upper($1)`,
		description,
	).Scan(&typeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve address type: %w", err)
	}
	return typeID, true, nil
}

func (s *txStore) NextAddressID(ctx context.Context) (int64, error) {
	var addressID int64
	err := s.tx.QueryRow(ctx, `SELECT nextval('sequence_address_seq')`).Scan(&addressID)
	if err != nil {
		return 0, fmt.Errorf("next address id: %w", err)
	}
	return addressID, nil
}

func (s *txStore) InsertAddress(ctx context.Context, row AddressRow) error {
	now := clock.Now()
	ins := newInsert("address")
	ins.add("address_id", row.AddressID)
	ins.add("address_type_id", row.AddressTypeID)
	ins.add("create_date", now)
	ins.add("modify_date", now)
	ins.addOpt("address1", row.Address1)
	ins.addOpt("address2", row.Address2)
	ins.addOpt("city", row.City)
	ins.addOpt("state_code", row.StateCode)
	ins.addOpt("zip", row.Zip)
	ins.addOpt("country_code", row.CountryCode)

	if _, err := s.tx.Exec(ctx, ins.sql(), ins.args...); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *txStore) LinkUserAddress(ctx context.Context, userID, addressID int64) error {
	query := `INSERT INTO user_address_xref (user_id, address_id) VALUES ($1, $2)`
	if _, err := s.tx.Exec(ctx, query, userID, addressID); err != nil {
		return fmt.Errorf("insert user address xref: %w", err)
	}
	return nil
}

func (s *txStore) UserAddressIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT address_id FROM user_address_xref WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user address ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan address id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user address ids: %w", err)
	}
	return ids, nil
}

func (s *txStore) DeleteUserAddresses(ctx context.Context, userID int64, addressIDs []int64) error {
	if _, err := s.tx.Exec(ctx,
		`DELETE FROM user_address_xref WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user address xrefs: %w", err)
	}
	if len(addressIDs) == 0 {
		return nil
	}
	if _, err := s.tx.Exec(ctx,
		`DELETE FROM address WHERE address_id = ANY($1)`, addressIDs); err != nil {
		return fmt.Errorf("delete addresses: %w", err)
	}
	return nil
}

func (s *txStore) CurrentImageID(ctx context.Context, coderID int64) (int64, bool, error) {
	var imageID int64
	err := s.tx.QueryRow(ctx,
		`SELECT image_id FROM coder_image_xref WHERE coder_id = $1 AND display_flag = 1`,
		coderID,
	).Scan(&imageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find current image: %w", err)
	}
	return imageID, true, nil
}

func (s *txStore) MaxImageID(ctx context.Context) (int64, bool, error) {
	var maxID *int64
	err := s.tx.QueryRow(ctx, `SELECT max(image_id) FROM image`).Scan(&maxID)
	if err != nil {
		return 0, false, fmt.Errorf("max image id: %w", err)
	}
	if maxID == nil {
		return 0, false, nil
	}
	return *maxID, true, nil
}

func (s *txStore) InsertImage(ctx context.Context, imageID int64, link string) error {
	query := `INSERT INTO image (image_id, image_type_id, link, modify_date) VALUES ($1, 1, $2, $3)`
	if _, err := s.tx.Exec(ctx, query, imageID, link, clock.Now()); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *txStore) UpdateImageLink(ctx context.Context, imageID int64, link string) error {
	query := `UPDATE image SET link = $1, modify_date = $2 WHERE image_id = $3`
	if _, err := s.tx.Exec(ctx, query, link, clock.Now(), imageID); err != nil {
		return fmt.Errorf("update image link: %w", err)
	}
	return nil
}

func (s *txStore) LinkCoderImage(ctx context.Context, coderID, imageID int64) error {
	query := `INSERT INTO coder_image_xref (coder_id, image_id, display_flag, modify_date) VALUES ($1, $2, 1, $3)`
	if _, err := s.tx.Exec(ctx, query, coderID, imageID, clock.Now()); err != nil {
		return fmt.Errorf("insert coder image xref: %w", err)
	}
	return nil
}

func (s *txStore) CountryCodeByISO3(ctx context.Context, isoAlpha3 string) (string, bool, error) {
	return s.countryCode(ctx,
		`SELECT country_code FROM country WHERE upper(iso_alpha3_code) = upper($1)`, isoAlpha3)
}

func (s *txStore) CountryCodeByName(ctx context.Context, name string) (string, bool, error) {
	return s.countryCode(ctx,
		`SELECT country_code FROM country WHERE upper(country_name) = upper($1)`, name)
}

func (s *txStore) countryCode(ctx context.Context, query, key string) (string, bool, error) {
	var code string
	err := s.tx.QueryRow(ctx, query, key).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve country code: %w", err)
	}
	return code, true, nil
}

// insertBuilder accumulates column/value pairs for an insert whose column
// set depends on which optional payload fields are present.
type insertBuilder struct {
	table string
	cols  []string
	args  []any
}

func newInsert(table string) *insertBuilder {
	return &insertBuilder{table: table}
}

func (b *insertBuilder) add(col string, v any) {
	b.cols = append(b.cols, col)
	b.args = append(b.args, v)
}

func (b *insertBuilder) addOpt(col string, v *string) {
	if v != nil {
		b.add(col, *v)
	}
}

func (b *insertBuilder) sql() string {
	placeholders := make([]string, len(b.cols))
	for i := range b.cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.table, strings.Join(b.cols, ", "), strings.Join(placeholders, ", "))
}

// updateBuilder accumulates a SET clause the same way.
type updateBuilder struct {
	sets []string
	args []any
}

func newUpdate() *updateBuilder {
	return &updateBuilder{}
}

func (b *updateBuilder) add(col string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *updateBuilder) addOpt(col string, v *string) {
	if v != nil {
		b.add(col, *v)
	}
}

func (b *updateBuilder) clause() string {
	return strings.Join(b.sets, ", ")
}

// bind appends a trailing argument (typically the WHERE key) and returns
// its placeholder.
func (b *updateBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}
