package portfolio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/identity"
)

// Snapshot captures open positions and account balances at a point in
// time. Entries are sorted so equal portfolios serialize identically,
// which lets a replayed run be verified against a recorded snapshot.
type Snapshot struct {
	TsTaken   int64           `json:"tsTaken"`
	LastSeq   uint64          `json:"lastSeq"`
	Positions []PositionEntry `json:"positions"`
	Accounts  []AccountEntry  `json:"accounts"`
}

// PositionEntry is one open position line.
type PositionEntry struct {
	PositionID   identity.PositionID   `json:"positionId"`
	AccountID    identity.AccountID    `json:"accountId"`
	InstrumentID identity.InstrumentID `json:"instrumentId"`
	NetQty       decimal.Decimal       `json:"netQty"`
	AvgPx        decimal.Decimal       `json:"avgPx"`
	RealizedPnL  decimal.Decimal       `json:"realizedPnl"`
}

// AccountEntry is one account balance line.
type AccountEntry struct {
	AccountID identity.AccountID `json:"accountId"`
	Currency  string             `json:"currency"`
	Balance   decimal.Decimal    `json:"balance"`
}

// Snapshot builds a snapshot of the open book and balances.
func (p *Portfolio) Snapshot(tsTaken int64) Snapshot {
	positions := make([]PositionEntry, 0, len(p.open))
	for key, pos := range p.open {
		positions = append(positions, PositionEntry{
			PositionID:   pos.ID,
			AccountID:    key.account,
			InstrumentID: key.instrument,
			NetQty:       pos.NetQty(),
			AvgPx:        pos.AvgPx(),
			RealizedPnL:  pos.RealizedPnL(),
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].PositionID < positions[j].PositionID
	})

	accounts := make([]AccountEntry, 0, len(p.accounts))
	for id, acct := range p.accounts {
		accounts = append(accounts, AccountEntry{
			AccountID: id,
			Currency:  acct.Currency,
			Balance:   acct.Balance(),
		})
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountID < accounts[j].AccountID
	})

	return Snapshot{
		TsTaken:   tsTaken,
		LastSeq:   p.seq.Last(),
		Positions: positions,
		Accounts:  accounts,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots describe the same book.
// Timestamps are ignored; two runs of the same input taken at different
// wall times must still compare equal.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return errors.Errorf("position count mismatch, expected: %d, actual: %d",
			len(expected.Positions), len(actual.Positions))
	}
	for i, want := range expected.Positions {
		got := actual.Positions[i]
		if want.PositionID != got.PositionID ||
			want.AccountID != got.AccountID ||
			want.InstrumentID != got.InstrumentID {
			return errors.Errorf("position identity mismatch at %d, expected: %s, actual: %s",
				i, want.PositionID, got.PositionID)
		}
		if !want.NetQty.Equal(got.NetQty) || !want.AvgPx.Equal(got.AvgPx) || !want.RealizedPnL.Equal(got.RealizedPnL) {
			return errors.Errorf("position values mismatch, position: %s", want.PositionID)
		}
	}
	if len(expected.Accounts) != len(actual.Accounts) {
		return errors.Errorf("account count mismatch, expected: %d, actual: %d",
			len(expected.Accounts), len(actual.Accounts))
	}
	for i, want := range expected.Accounts {
		got := actual.Accounts[i]
		if want.AccountID != got.AccountID {
			return errors.Errorf("account mismatch at %d, expected: %s, actual: %s",
				i, want.AccountID, got.AccountID)
		}
		if !want.Balance.Equal(got.Balance) {
			return errors.Errorf("balance mismatch, account: %s, expected: %s, actual: %s",
				want.AccountID, want.Balance, got.Balance)
		}
	}
	return nil
}
