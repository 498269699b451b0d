package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Account represents a player account in the database.
type Account struct {
	ID                  uint32
	Username            string
	Nickname            string
	Cookie              int64
	EquippedCharacterID uint32
	CreatedAt           time.Time
}

// ErrAccountNotFound is returned when an account lookup yields no results.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when attempting to create a duplicate username.
var ErrAccountExists = errors.New("account already exists")

// AccountRepository provides account provisioning. Login itself is handled by
// the login server; the game server only reads profiles.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account together with an empty statistics row and one
// starter character of starterTypeID, which is equipped.
//
// Precondition: username and nickname must be non-empty.
// Postcondition: Returns the created Account with ID, EquippedCharacterID and
// CreatedAt set, or ErrAccountExists if the username is taken.
func (r *AccountRepository) Create(ctx context.Context, username, nickname string, starterTypeID uint32) (Account, error) {
	var acct Account
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO accounts (username, nickname)
			 VALUES ($1, $2)
			 RETURNING id, username, nickname, cookie, created_at`,
			username, nickname,
		).Scan(&id, &acct.Username, &acct.Nickname, &acct.Cookie, &acct.CreatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrAccountExists
			}
			return fmt.Errorf("inserting account: %w", err)
		}
		acct.ID = uint32(id)

		if _, err := tx.Exec(ctx, `INSERT INTO statistic (account_id) VALUES ($1)`, id); err != nil {
			return fmt.Errorf("inserting statistics: %w", err)
		}

		var charID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO characters (account_id, type_id) VALUES ($1, $2) RETURNING id`,
			id, int64(starterTypeID),
		).Scan(&charID); err != nil {
			return fmt.Errorf("inserting starter character: %w", err)
		}
		acct.EquippedCharacterID = uint32(charID)

		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET equipped_character_id = $2 WHERE id = $1`, id, charID,
		); err != nil {
			return fmt.Errorf("equipping starter character: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return Account{}, err
		}
		return Account{}, unavailable("creating account", err)
	}
	return acct, nil
}

// GetByUsername retrieves an account by username.
//
// Precondition: username must be non-empty.
// Postcondition: Returns the Account or ErrAccountNotFound.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	var (
		acct         Account
		id, equipped int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, username, nickname, cookie, equipped_character_id, created_at
		 FROM accounts WHERE username = $1`,
		username,
	).Scan(&id, &acct.Username, &acct.Nickname, &acct.Cookie, &equipped, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, unavailable("querying account", err)
	}
	acct.ID = uint32(id)
	acct.EquippedCharacterID = uint32(equipped)
	return acct, nil
}
