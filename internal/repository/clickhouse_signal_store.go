package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"

	"github.com/google/uuid"
)

// SignalSchema are the idempotent statements the ClickHouse client runs at
// startup.
func SignalSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
			id String,
			category LowCardinality(String),
			source LowCardinality(String),
			source_url String,
			target_symbol String,
			target_sector String,
			direction LowCardinality(String),
			strength Float64,
			confidence Float64,
			title String,
			summary String,
			rationale String,
			raw_payload String,
			detected_at DateTime64(3, 'UTC'),
			expires_at DateTime64(3, 'UTC'),
			created_at DateTime64(3, 'UTC'),
			outcome LowCardinality(String),
			actual_return Nullable(Float64)
		) ENGINE=MergeTree ORDER BY (detected_at, title)`, database),
	}
}

// lockStripes bounds the lock table; distinct keys may share a stripe,
// which only costs some serialization.
const lockStripes = 64

// ClickHouseSignalStore implements SignalStore on ClickHouse. MergeTree has
// no unique constraint, so the (title, detectedAt) invariant is enforced by
// a striped mutex around check-then-insert; outcome transitions are
// serialized the same way per signal id.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
	locks [lockStripes]sync.Mutex
}

func NewClickHouseSignalStore(db *sql.DB, table string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{db: db, table: table}
}

func (s *ClickHouseSignalStore) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *ClickHouseSignalStore) Insert(ctx context.Context, cand *models.CandidateSignal) (*models.Signal, bool, error) {
	lock := s.keyLock(cand.DedupKey())
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.getByDedup(ctx, cand.Title, cand.DetectedAt)
	if err != nil && !errors.Is(err, drepo.ErrSignalNotFound) {
		return nil, false, fmt.Errorf("dedup check: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	sig := &models.Signal{
		ID:           uuid.New().String(),
		Category:     cand.Category,
		Source:       cand.Source,
		SourceURL:    cand.SourceURL,
		TargetSymbol: cand.TargetSymbol,
		TargetSector: cand.TargetSector,
		Direction:    cand.Direction,
		Strength:     cand.Strength,
		Confidence:   cand.Confidence,
		Title:        cand.Title,
		Summary:      cand.Summary,
		Rationale:    cand.Rationale,
		RawPayload:   cand.RawPayload,
		DetectedAt:   cand.DetectedAt.UTC(),
		ExpiresAt:    cand.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
		Outcome:      models.OutcomePending,
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, category, source, source_url, target_symbol, target_sector,
		direction, strength, confidence, title, summary, rationale, raw_payload,
		detected_at, expires_at, created_at, outcome, actual_return)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		sig.ID, string(sig.Category), sig.Source, sig.SourceURL, sig.TargetSymbol, sig.TargetSector,
		string(sig.Direction), sig.Strength, sig.Confidence, sig.Title, sig.Summary, sig.Rationale,
		string(sig.RawPayload), sig.DetectedAt, sig.ExpiresAt, sig.CreatedAt, string(sig.Outcome), sig.ActualReturn,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert signal: %w", err)
	}
	return sig, true, nil
}

const signalColumns = `id, category, source, source_url, target_symbol, target_sector,
	direction, strength, confidence, title, summary, rationale, raw_payload,
	detected_at, expires_at, created_at, outcome, actual_return`

func (s *ClickHouseSignalStore) getByDedup(ctx context.Context, title string, detectedAt time.Time) (*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE title = ? AND detected_at = ? LIMIT 1", signalColumns, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, q, title, detectedAt.UTC()))
}

func (s *ClickHouseSignalStore) Get(ctx context.Context, id string) (*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", signalColumns, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *ClickHouseSignalStore) scanOne(row *sql.Row) (*models.Signal, error) {
	sig, err := scanSignal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, drepo.ErrSignalNotFound
	}
	return sig, err
}

func scanSignal(scan func(...interface{}) error) (*models.Signal, error) {
	var sig models.Signal
	var category, direction, outcome, raw string
	var actualReturn sql.NullFloat64
	err := scan(
		&sig.ID, &category, &sig.Source, &sig.SourceURL, &sig.TargetSymbol, &sig.TargetSector,
		&direction, &sig.Strength, &sig.Confidence, &sig.Title, &sig.Summary, &sig.Rationale, &raw,
		&sig.DetectedAt, &sig.ExpiresAt, &sig.CreatedAt, &outcome, &actualReturn,
	)
	if err != nil {
		return nil, err
	}
	sig.Category = models.Category(category)
	sig.Direction = models.Direction(direction)
	sig.Outcome = models.Outcome(outcome)
	sig.RawPayload = []byte(raw)
	if actualReturn.Valid {
		v := actualReturn.Float64
		sig.ActualReturn = &v
	}
	return &sig, nil
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, f models.SignalFilter) ([]*models.Signal, int64, error) {
	where, args := buildWhere(f)

	var total int64
	countQ := fmt.Sprintf("SELECT count() FROM %s %s", s.table, where)
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count signals: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY detected_at DESC, created_at DESC LIMIT ? OFFSET ?",
		signalColumns, s.table, where)
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []*models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sig)
	}
	return out, total, rows.Err()
}

func buildWhere(f models.SignalFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(f.Direction))
	}
	if f.MinConfidence > 0 {
		conds = append(conds, "confidence >= ?")
		args = append(args, f.MinConfidence)
	}
	if f.Symbol != "" {
		conds = append(conds, "target_symbol = ?")
		args = append(args, f.Symbol)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "detected_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "detected_at <= ?")
		args = append(args, f.Until.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *ClickHouseSignalStore) RecordOutcome(ctx context.Context, id string, outcome models.Outcome, actualReturn *float64) (*models.Signal, error) {
	lock := s.keyLock("outcome:" + id)
	lock.Lock()
	defer lock.Unlock()

	sig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sig.Outcome != models.OutcomePending {
		return nil, drepo.ErrOutcomeAlreadySet
	}

	q := fmt.Sprintf("ALTER TABLE %s UPDATE outcome = ?, actual_return = ? WHERE id = ?", s.table)
	if _, err := s.db.ExecContext(ctx, q, string(outcome), actualReturn, id); err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	sig.Outcome = outcome
	sig.ActualReturn = actualReturn
	return sig, nil
}

func (s *ClickHouseSignalStore) Stats(ctx context.Context) (*models.SignalStats, error) {
	st := &models.SignalStats{
		ByCategory:  make(map[string]int64),
		ByDirection: make(map[string]int64),
	}

	q := fmt.Sprintf(`SELECT category, direction, outcome, count() FROM %s GROUP BY category, direction, outcome`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, direction, outcome string
		var n int64
		if err := rows.Scan(&category, &direction, &outcome, &n); err != nil {
			return nil, err
		}
		st.Total += n
		st.ByCategory[category] += n
		st.ByDirection[direction] += n
		switch models.Outcome(outcome) {
		case models.OutcomePending:
			st.Pending += n
		case models.OutcomeCorrect:
			st.Evaluated += n
			st.Correct += n
		case models.OutcomeIncorrect:
			st.Evaluated += n
			st.Incorrect += n
		}
	}
	return st, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool managed by pkg/clickhouse
}

var _ drepo.SignalStore = (*ClickHouseSignalStore)(nil)
