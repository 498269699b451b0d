// Package stats holds the per-account gameplay statistics loaded once at
// login, mutated in memory during play, and written back at teardown.
package stats

import (
	"errors"

	"github.com/cory-johannsen/fairway/internal/game/character"
)

// ErrStatisticsNotFound is returned by a profile store when an account has no
// statistics record. Such an account cannot play.
var ErrStatisticsNotFound = errors.New("statistics not found")

// CourseModes is the number of per-mode score and pang records.
const CourseModes = 5

// Statistics is the cached statistics snapshot of one account.
type Statistics struct {
	Drive             int32
	Putt              int32
	PlayTime          int32
	ShotTime          int32
	LongestDistance   float32
	DistanceTotal     int32
	Pangya            int32
	Timeout           int32
	OB                int32
	Bunker            int32
	Fairway           int32
	Albatross         int32
	Hole              int32
	TeamHole          int32
	HoleInOne         int32
	HoleIn            int32
	PuttIn            int32
	LongestPutt       float32
	LongestChip       float32
	Exp               int32
	Level             uint8
	Pang              int64
	TotalScore        int32
	Score             [CourseModes]uint8
	MaxPang           [CourseModes]int64
	SumPang           int64
	GamePlayed        int32
	Disconnected      int32
	TeamWin           int32
	TeamGame          int32
	LadderPoint       int32
	LadderWin         int32
	LadderLose        int32
	LadderDraw        int32
	LadderHole        int32
	ComboCount        int32
	MaxCombo          int32
	NoMannerGameCount int32
	GameCountSeason   int32
	SkinsPang         int64
	SkinsWin          int32
	SkinsLose         int32
	SkinsRunHole      int32
	SkinsStrikePoint  int32
	SkinsAllInCount   int32
}

// RemovePang deducts amount from the pang balance.
//
// Precondition: amount >= 0.
// Postcondition: Returns false and leaves Pang unchanged when Pang < amount.
func (s *Statistics) RemovePang(amount int64) bool {
	if amount < 0 || s.Pang < amount {
		return false
	}
	s.Pang -= amount
	return true
}

// Profile is everything the persistence collaborator returns for an account at login.
type Profile struct {
	AccountID           uint32
	Stats               Statistics
	Cookie              int64
	Characters          []character.Character
	EquippedCharacterID uint32
}
