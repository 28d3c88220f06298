package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by the repositories. *pgxpool.Pool, pgx.Tx
// and pgxmock all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	accountColumns = `"id","email","firstName","lastName","password","role","isActive","isApproved","provider","providerId","profileImageUrl","twoFactorEnabled","otpCode","otpExpiry","createdAt","updatedAt"`
	resetColumns   = `"id","tokenHash","accountId","expiresAt","used","createdAt"`

	accountEmailIndex    = "Account_email_lower_key"
	accountProviderIndex = "Account_provider_providerId_key"
	uniqueViolation      = "23505"
)

type PostgresStore struct {
	db   DBTX
	inTx bool
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Accounts() AccountStore       { return &pgAccounts{s: s} }
func (s *PostgresStore) ResetTokens() ResetTokenStore { return &pgResetTokens{s: s} }

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(&PostgresStore{db: tx, inTx: true})
}

// lockClause row-locks reads made inside a transaction.
func (s *PostgresStore) lockClause() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

type pgAccounts struct {
	s *PostgresStore
}

func (r *pgAccounts) findOne(ctx context.Context, where string, args ...any) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM "Account" WHERE ` + where + r.s.lockClause()
	acct, err := scanAccount(r.s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return acct, nil
}

func (r *pgAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, `lower("email")=$1`, NormalizeEmail(email))
}

func (r *pgAccounts) FindByID(ctx context.Context, id string) (*Account, error) {
	return r.findOne(ctx, `"id"=$1`, id)
}

func (r *pgAccounts) FindByProvider(ctx context.Context, provider, subject string) (*Account, error) {
	return r.findOne(ctx, `"provider"=$1 AND "providerId"=$2`, provider, subject)
}

func (r *pgAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM "Account" WHERE lower("email")=$1)`, NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("account exists: %w", err)
	}
	return exists, nil
}

func (r *pgAccounts) Create(ctx context.Context, a *Account) error {
	_, err := r.s.db.Exec(ctx, `
		INSERT INTO "Account" (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, accountArgs(a)...)
	if err != nil {
		return mapAccountWriteErr("create account", err)
	}
	return nil
}

func (r *pgAccounts) Save(ctx context.Context, a *Account) error {
	_, err := r.s.db.Exec(ctx, `
		INSERT INTO "Account" (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT ("id") DO UPDATE SET
			"email"=EXCLUDED."email",
			"firstName"=EXCLUDED."firstName",
			"lastName"=EXCLUDED."lastName",
			"password"=EXCLUDED."password",
			"isActive"=EXCLUDED."isActive",
			"isApproved"=EXCLUDED."isApproved",
			"provider"=EXCLUDED."provider",
			"providerId"=EXCLUDED."providerId",
			"profileImageUrl"=EXCLUDED."profileImageUrl",
			"twoFactorEnabled"=EXCLUDED."twoFactorEnabled",
			"otpCode"=EXCLUDED."otpCode",
			"otpExpiry"=EXCLUDED."otpExpiry",
			"updatedAt"=EXCLUDED."updatedAt"
	`, accountArgs(a)...)
	if err != nil {
		return mapAccountWriteErr("save account", err)
	}
	return nil
}

func (r *pgAccounts) Update(ctx context.Context, id string, fn func(*Account) error) (*Account, error) {
	return updateAccount(ctx, r.s, id, fn)
}

func (r *pgAccounts) FindByRoleUnapproved(ctx context.Context, role Role) ([]*Account, error) {
	rows, err := r.s.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM "Account"
		WHERE "role"=$1 AND "isApproved"=FALSE
		ORDER BY "createdAt"
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list unapproved: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list unapproved: %w", err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unapproved: %w", err)
	}
	return out, nil
}

func accountArgs(a *Account) []any {
	return []any{
		a.ID, a.Email, a.FirstName, a.LastName, nullString(a.PasswordHash), string(a.Role),
		a.Active, a.Approved, a.Provider, nullString(a.ProviderID), nullString(a.AvatarURL),
		a.TwoFactorEnabled, nullString(a.OTPCode), nullTime(a.OTPExpiry), a.CreatedAt, a.UpdatedAt,
	}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a          Account
		role       string
		password   sql.NullString
		providerID sql.NullString
		avatar     sql.NullString
		otpCode    sql.NullString
		otpExpiry  sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName, &password, &role,
		&a.Active, &a.Approved, &a.Provider, &providerID, &avatar,
		&a.TwoFactorEnabled, &otpCode, &otpExpiry, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = Role(role)
	a.PasswordHash = fromNullString(password)
	a.ProviderID = fromNullString(providerID)
	a.AvatarURL = fromNullString(avatar)
	a.OTPCode = fromNullString(otpCode)
	if otpExpiry.Valid {
		t := otpExpiry.Time
		a.OTPExpiry = &t
	}
	return &a, nil
}

func mapAccountWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case accountEmailIndex:
			return ErrDuplicateEmail
		case accountProviderIndex:
			return fmt.Errorf("%s: %w", op, ErrIdentityLinked)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgResetTokens struct {
	s *PostgresStore
}

func (r *pgResetTokens) FindByToken(ctx context.Context, tokenHash string) (*ResetToken, error) {
	row := r.s.db.QueryRow(ctx, `SELECT `+resetColumns+` FROM "PasswordResetToken" WHERE "tokenHash"=$1`+r.s.lockClause(), tokenHash)
	t, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return t, nil
}

func (r *pgResetTokens) FindUnusedByAccount(ctx context.Context, accountID string) ([]*ResetToken, error) {
	rows, err := r.s.db.Query(ctx, `SELECT `+resetColumns+` FROM "PasswordResetToken" WHERE "accountId"=$1 AND "used"=FALSE`+r.s.lockClause(), accountID)
	if err != nil {
		return nil, fmt.Errorf("find unused reset tokens: %w", err)
	}
	defer rows.Close()

	var out []*ResetToken
	for rows.Next() {
		t, err := scanResetToken(rows)
		if err != nil {
			return nil, fmt.Errorf("find unused reset tokens: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *pgResetTokens) Save(ctx context.Context, t *ResetToken) error {
	_, err := r.s.db.Exec(ctx, `
		INSERT INTO "PasswordResetToken" (`+resetColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT ("id") DO UPDATE SET "used"=EXCLUDED."used"
	`, t.ID, t.TokenHash, t.AccountID, t.ExpiresAt, t.Used, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func scanResetToken(row pgx.Row) (*ResetToken, error) {
	var t ResetToken
	if err := row.Scan(&t.ID, &t.TokenHash, &t.AccountID, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return stringPtr(ns.String)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
