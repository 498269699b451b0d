package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/fairway/internal/game/character"
	"github.com/cory-johannsen/fairway/internal/game/fault"
	"github.com/cory-johannsen/fairway/internal/game/stats"
	"github.com/cory-johannsen/fairway/internal/game/transaction"
)

// statColumn binds one statistic table column to a field of stats.Statistics.
type statColumn struct {
	name string
	ptr  any
}

// statColumns lists every persisted statistics column in table order, each
// bound to the matching field of s.
func statColumns(s *stats.Statistics) []statColumn {
	return []statColumn{
		{"drive", &s.Drive},
		{"putt", &s.Putt},
		{"playtime", &s.PlayTime},
		{"shottime", &s.ShotTime},
		{"longestdistance", &s.LongestDistance},
		{"distancetotal", &s.DistanceTotal},
		{"pangya", &s.Pangya},
		{"timeout", &s.Timeout},
		{"ob", &s.OB},
		{"bunker", &s.Bunker},
		{"fairway", &s.Fairway},
		{"albatross", &s.Albatross},
		{"hole", &s.Hole},
		{"teamhole", &s.TeamHole},
		{"holeinone", &s.HoleInOne},
		{"holein", &s.HoleIn},
		{"puttin", &s.PuttIn},
		{"longestputt", &s.LongestPutt},
		{"longestchip", &s.LongestChip},
		{"exp", &s.Exp},
		{"level", &s.Level},
		{"pang", &s.Pang},
		{"totalscore", &s.TotalScore},
		{"score0", &s.Score[0]},
		{"score1", &s.Score[1]},
		{"score2", &s.Score[2]},
		{"score3", &s.Score[3]},
		{"score4", &s.Score[4]},
		{"maxpang0", &s.MaxPang[0]},
		{"maxpang1", &s.MaxPang[1]},
		{"maxpang2", &s.MaxPang[2]},
		{"maxpang3", &s.MaxPang[3]},
		{"maxpang4", &s.MaxPang[4]},
		{"sumpang", &s.SumPang},
		{"gameplayed", &s.GamePlayed},
		{"disconnected", &s.Disconnected},
		{"teamwin", &s.TeamWin},
		{"teamgame", &s.TeamGame},
		{"ladderpoint", &s.LadderPoint},
		{"ladderwin", &s.LadderWin},
		{"ladderlose", &s.LadderLose},
		{"ladderdraw", &s.LadderDraw},
		{"ladderhole", &s.LadderHole},
		{"combocount", &s.ComboCount},
		{"maxcombo", &s.MaxCombo},
		{"nomannergamecount", &s.NoMannerGameCount},
		{"gamecountseason", &s.GameCountSeason},
		{"skinspang", &s.SkinsPang},
		{"skinswin", &s.SkinsWin},
		{"skinslose", &s.SkinsLose},
		{"skinsrunhole", &s.SkinsRunHole},
		{"skinsstrikepoint", &s.SkinsStrikePoint},
		{"skinsallincount", &s.SkinsAllInCount},
	}
}

// selectStatisticsSQL loads the wallet and every statistics column for one account.
func selectStatisticsSQL(cols []statColumn) string {
	var b strings.Builder
	b.WriteString("SELECT a.cookie, a.equipped_character_id")
	for _, c := range cols {
		b.WriteString(", s.")
		b.WriteString(c.name)
	}
	b.WriteString(" FROM accounts a JOIN statistic s ON s.account_id = a.id WHERE a.id = $1")
	return b.String()
}

// updateStatisticsSQL writes every statistics column; $1 is the account id.
func updateStatisticsSQL(cols []statColumn) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c.name, i+2)
	}
	return "UPDATE statistic SET " + strings.Join(sets, ", ") + " WHERE account_id = $1"
}

// ledgerColumns are the columns copied for each transaction record.
var ledgerColumns = []string{"account_id", "kind", "type_id", "item_id", "payload"}

// ProfileRepository loads and saves account profiles. It satisfies the
// session store contract.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a ProfileRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// LoadProfile reads the statistics, wallet and owned characters of accountID.
//
// Postcondition: Returns stats.ErrStatisticsNotFound if the account has no
// statistics row; any other failure wraps fault.ErrPersistence.
func (r *ProfileRepository) LoadProfile(ctx context.Context, accountID uint32) (stats.Profile, error) {
	p := stats.Profile{AccountID: accountID}
	cols := statColumns(&p.Stats)

	dest := make([]any, 0, len(cols)+2)
	var equipped int64
	dest = append(dest, &p.Cookie, &equipped)
	for _, c := range cols {
		dest = append(dest, c.ptr)
	}

	err := r.db.QueryRow(ctx, selectStatisticsSQL(cols), int64(accountID)).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats.Profile{}, fmt.Errorf("account %d: %w", accountID, stats.ErrStatisticsNotFound)
		}
		return stats.Profile{}, unavailable("querying statistics", err)
	}
	p.EquippedCharacterID = uint32(equipped)

	chars, err := r.loadCharacters(ctx, accountID)
	if err != nil {
		return stats.Profile{}, err
	}
	p.Characters = chars
	return p, nil
}

func (r *ProfileRepository) loadCharacters(ctx context.Context, accountID uint32) ([]character.Character, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, type_id, hair_color, shirt, parts, aux_parts, cutin_id, upgrades
		 FROM characters WHERE account_id = $1 ORDER BY id`,
		int64(accountID),
	)
	if err != nil {
		return nil, unavailable("querying characters", err)
	}
	defer rows.Close()

	var out []character.Character
	for rows.Next() {
		var (
			id, typeID, cutin int64
			hair, shirt       int16
			parts, aux        []int64
			upgrades          []int16
		)
		if err := rows.Scan(&id, &typeID, &hair, &shirt, &parts, &aux, &cutin, &upgrades); err != nil {
			return nil, unavailable("scanning character", err)
		}
		c := character.Character{
			ID:        uint32(id),
			TypeID:    uint32(typeID),
			HairColor: uint8(hair),
			Shirt:     uint8(shirt),
			CutinID:   uint32(cutin),
		}
		for i := 0; i < len(parts) && i < character.PartSlots; i++ {
			c.Parts[i] = uint32(parts[i])
		}
		for i := 0; i < len(aux) && i < character.AuxSlots; i++ {
			c.AuxParts[i] = uint32(aux[i])
		}
		for i := 0; i < len(upgrades) && i < len(c.Upgrades); i++ {
			c.Upgrades[i] = uint8(upgrades[i])
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating characters", err)
	}
	return out, nil
}

// SaveProfile writes statistics and wallet and appends ledger in one
// transaction.
//
// Postcondition: Either every write is committed or none is. Returns
// stats.ErrStatisticsNotFound if the account has no statistics row.
func (r *ProfileRepository) SaveProfile(ctx context.Context, p stats.Profile, ledger []transaction.Record) error {
	s := p.Stats
	cols := statColumns(&s)
	args := make([]any, 0, len(cols)+1)
	args = append(args, int64(p.AccountID))
	for _, c := range cols {
		args = append(args, c.ptr)
	}

	rowsData, err := ledgerRows(p.AccountID, ledger)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateStatisticsSQL(cols), args...)
		if err != nil {
			return unavailable("updating statistics", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %d: %w", p.AccountID, stats.ErrStatisticsNotFound)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET cookie = $2, equipped_character_id = $3 WHERE id = $1`,
			int64(p.AccountID), p.Cookie, int64(p.EquippedCharacterID),
		); err != nil {
			return unavailable("updating wallet", err)
		}

		if len(rowsData) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"transaction_ledger"}, ledgerColumns, pgx.CopyFromRows(rowsData)); err != nil {
			return unavailable("appending ledger", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, stats.ErrStatisticsNotFound) || errors.Is(err, fault.ErrPersistence) {
			return err
		}
		return unavailable("saving profile", err)
	}
	return nil
}

// ledgerRows converts records into CopyFrom rows with a JSON payload column.
func ledgerRows(accountID uint32, ledger []transaction.Record) ([][]any, error) {
	rows := make([][]any, 0, len(ledger))
	for _, rec := range ledger {
		if rec.Payload == nil {
			return nil, fmt.Errorf("ledger record for item %d has no payload", rec.ItemID)
		}
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding ledger payload: %w", err)
		}
		rows = append(rows, []any{
			int64(accountID),
			int16(rec.Payload.Key()),
			int64(rec.TypeID),
			int64(rec.ItemID),
			payload,
		})
	}
	return rows, nil
}
