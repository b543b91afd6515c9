package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL types and placeholder syntax
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// HolocronWriter persists recommendations, CLV records and rating snapshots
// to the Holocron database. SQLite is supported for local runs and tests.
type HolocronWriter struct {
	db      *sql.DB
	dialect Dialect
}

// NewHolocronWriter wraps an open database
func NewHolocronWriter(db *sql.DB, dialect Dialect) *HolocronWriter {
	return &HolocronWriter{
		db:      db,
		dialect: dialect,
	}
}

// Open connects using a DSN. postgres:// and postgresql:// URLs use lib/pq;
// sqlite:// paths (or ":memory:") use the pure-Go SQLite driver.
func Open(dsn string) (*HolocronWriter, error) {
	dialect, source := parseDSN(dsn)

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	if dialect == SQLite {
		// a single connection keeps ":memory:" databases shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return NewHolocronWriter(db, dialect), nil
}

func parseDSN(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return SQLite, strings.TrimPrefix(dsn, "sqlite://")
	case dsn == ":memory:" || strings.HasSuffix(dsn, ".db"):
		return SQLite, dsn
	}
	return Postgres, dsn
}

// Ping verifies the connection
func (w *HolocronWriter) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes the database
func (w *HolocronWriter) Close() error {
	return w.db.Close()
}

// DB returns the underlying handle
func (w *HolocronWriter) DB() *sql.DB {
	return w.db
}

// Dialect returns the SQL dialect in use
func (w *HolocronWriter) Dialect() Dialect {
	return w.dialect
}

const schema = `
CREATE TABLE IF NOT EXISTS handicapper_recommendations (
	id             TEXT PRIMARY KEY,
	game_id        TEXT NOT NULL,
	league         TEXT NOT NULL,
	market_type    TEXT NOT NULL,
	side           TEXT NOT NULL,
	tier           TEXT NOT NULL,
	edge_points    {{real}} NOT NULL,
	confidence     {{real}} NOT NULL,
	model_line     {{real}} NOT NULL,
	market_line    {{real}} NOT NULL,
	blended        BOOLEAN NOT NULL,
	bet_line       {{real}} NOT NULL,
	price          INTEGER NOT NULL,
	kelly_fraction {{real}} NOT NULL,
	stake          {{money}} NOT NULL,
	bankroll       {{money}} NOT NULL,
	blocked        BOOLEAN NOT NULL,
	block_reason   TEXT,
	created_at     {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS handicapper_clv_records (
	id                  TEXT PRIMARY KEY,
	recommendation_id   TEXT NOT NULL,
	game_id             TEXT NOT NULL,
	league              TEXT NOT NULL,
	market_type         TEXT NOT NULL,
	side                TEXT NOT NULL,
	home_team           TEXT,
	away_team           TEXT,
	kickoff             {{ts}} NOT NULL,
	opening_line        {{real}} NOT NULL,
	opening_price       INTEGER NOT NULL,
	model_line          {{real}},
	stake               {{money}} NOT NULL,
	placed_at           {{ts}} NOT NULL,
	closing_line        {{real}},
	closing_price       INTEGER,
	closing_home_margin {{real}},
	clv                 {{real}},
	closed_at           {{ts}},
	result              TEXT,
	profit_loss         {{money}},
	graded_at           {{ts}}
);

CREATE INDEX IF NOT EXISTS idx_handicapper_clv_game ON handicapper_clv_records (game_id);

CREATE TABLE IF NOT EXISTS handicapper_rating_snapshots (
	id                   {{serial}},
	league               TEXT NOT NULL,
	team                 TEXT NOT NULL,
	overall              {{real}} NOT NULL,
	offensive            {{real}} NOT NULL,
	defensive            {{real}} NOT NULL,
	home_field_advantage {{real}} NOT NULL,
	games_played         INTEGER NOT NULL,
	smoothed             {{real}} NOT NULL,
	smoothed_offensive   {{real}} NOT NULL,
	smoothed_defensive   {{real}} NOT NULL,
	last_updated         {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_handicapper_ratings_team ON handicapper_rating_snapshots (league, team);

CREATE TABLE IF NOT EXISTS handicapper_bankroll_snapshots (
	id              {{serial}},
	current_balance {{money}} NOT NULL,
	week_start      {{money}} NOT NULL,
	week_exposure   {{money}} NOT NULL,
	week_started_at {{ts}} NOT NULL,
	recorded_at     {{ts}} NOT NULL
);
`

// EnsureSchema creates the handicapper tables if they do not exist
func (w *HolocronWriter) EnsureSchema(ctx context.Context) error {
	types := map[Dialect]*strings.Replacer{
		Postgres: strings.NewReplacer(
			"{{real}}", "DOUBLE PRECISION",
			"{{money}}", "NUMERIC(14,2)",
			"{{ts}}", "TIMESTAMPTZ",
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
		),
		SQLite: strings.NewReplacer(
			"{{real}}", "REAL",
			"{{money}}", "TEXT",
			"{{ts}}", "TIMESTAMP",
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		),
	}

	ddl := types[w.dialect].Replace(schema)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// query adapts a $N-style query to the dialect
func (w *HolocronWriter) query(q string) string {
	if w.dialect == SQLite {
		return placeholder.ReplaceAllString(q, "?$1")
	}
	return q
}

// WriteRecommendation records a sized or blocked recommendation once
func (w *HolocronWriter) WriteRecommendation(ctx context.Context, rec models.BetRecommendation) error {
	q := w.query(`
		INSERT INTO handicapper_recommendations (
			id, game_id, league, market_type, side, tier,
			edge_points, confidence, model_line, market_line, blended,
			bet_line, price, kelly_fraction, stake, bankroll,
			blocked, block_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING
	`)

	e := rec.Edge
	_, err := w.db.ExecContext(ctx, q,
		rec.ID,
		e.GameID,
		e.League,
		string(e.MarketType),
		string(rec.Side),
		string(rec.Tier),
		e.EdgePoints,
		e.Confidence,
		e.ModelLine,
		e.MarketLine,
		e.Blended,
		e.BetLine,
		e.Price,
		rec.KellyFraction,
		rec.StakeAmount.StringFixed(2),
		rec.BankrollAtTime.StringFixed(2),
		rec.Blocked,
		nullString(string(rec.BlockReason)),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

// WriteCLVRecord inserts a record or updates its closing and result columns
func (w *HolocronWriter) WriteCLVRecord(ctx context.Context, r models.CLVRecord) error {
	q := w.query(`
		INSERT INTO handicapper_clv_records (
			id, recommendation_id, game_id, league, market_type, side,
			home_team, away_team, kickoff, opening_line, opening_price, model_line,
			stake, placed_at, closing_line, closing_price, closing_home_margin,
			clv, closed_at, result, profit_loss, graded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			closing_line = EXCLUDED.closing_line,
			closing_price = EXCLUDED.closing_price,
			closing_home_margin = EXCLUDED.closing_home_margin,
			clv = EXCLUDED.clv,
			closed_at = EXCLUDED.closed_at,
			result = EXCLUDED.result,
			profit_loss = EXCLUDED.profit_loss,
			graded_at = EXCLUDED.graded_at
	`)

	var result sql.NullString
	if r.Result != nil {
		result = sql.NullString{String: string(*r.Result), Valid: true}
	}
	var profitLoss sql.NullString
	if r.ProfitLoss != nil {
		profitLoss = sql.NullString{String: r.ProfitLoss.StringFixed(2), Valid: true}
	}
	var closingPrice sql.NullInt64
	if r.ClosingPrice != nil {
		closingPrice = sql.NullInt64{Int64: int64(*r.ClosingPrice), Valid: true}
	}

	_, err := w.db.ExecContext(ctx, q,
		r.ID,
		r.RecommendationID,
		r.GameID,
		r.League,
		string(r.MarketType),
		string(r.Side),
		nullString(r.HomeTeam),
		nullString(r.AwayTeam),
		r.Kickoff,
		r.OpeningLine,
		r.OpeningPrice,
		nullFloat(r.ModelLine),
		r.Stake.StringFixed(2),
		r.PlacedAt,
		nullFloat(r.ClosingLine),
		closingPrice,
		nullFloat(r.ClosingHome),
		nullFloat(r.CLV),
		nullTime(r.ClosedAt),
		result,
		profitLoss,
		nullTime(r.GradedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert clv record %s: %w", r.ID, err)
	}
	return nil
}

// WriteRatings appends a snapshot row per rating in one transaction
func (w *HolocronWriter) WriteRatings(ctx context.Context, ratings []models.TeamRating) error {
	if len(ratings) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := w.query(`
		INSERT INTO handicapper_rating_snapshots (
			league, team, overall, offensive, defensive, home_field_advantage,
			games_played, smoothed, smoothed_offensive, smoothed_defensive, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)

	for _, r := range ratings {
		_, err := tx.ExecContext(ctx, q,
			r.League,
			r.Team,
			r.Overall,
			r.Offensive,
			r.Defensive,
			r.HomeFieldAdvantage,
			r.GamesPlayed,
			r.Smoothed,
			r.SmoothedOffensive,
			r.SmoothedDefensive,
			r.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rating for %s: %w", r.Team, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestRatings returns the newest snapshot of every team
func (w *HolocronWriter) LatestRatings(ctx context.Context) ([]models.TeamRating, error) {
	q := `
		SELECT league, team, overall, offensive, defensive, home_field_advantage,
		       games_played, smoothed, smoothed_offensive, smoothed_defensive, last_updated
		FROM handicapper_rating_snapshots s
		WHERE s.id = (
			SELECT MAX(id) FROM handicapper_rating_snapshots
			WHERE league = s.league AND team = s.team
		)
		ORDER BY league, team
	`

	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.TeamRating
	for rows.Next() {
		var r models.TeamRating
		err := rows.Scan(
			&r.League,
			&r.Team,
			&r.Overall,
			&r.Offensive,
			&r.Defensive,
			&r.HomeFieldAdvantage,
			&r.GamesPlayed,
			&r.Smoothed,
			&r.SmoothedOffensive,
			&r.SmoothedDefensive,
			&r.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}
	return ratings, nil
}

// WriteBankroll appends a bankroll snapshot
func (w *HolocronWriter) WriteBankroll(ctx context.Context, b models.Bankroll) error {
	q := w.query(`
		INSERT INTO handicapper_bankroll_snapshots (
			current_balance, week_start, week_exposure, week_started_at, recorded_at
		) VALUES ($1, $2, $3, $4, $5)
	`)

	_, err := w.db.ExecContext(ctx, q,
		b.Current.StringFixed(2),
		b.WeekStart.StringFixed(2),
		b.WeekExposure.StringFixed(2),
		b.WeekStartedAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bankroll snapshot: %w", err)
	}
	return nil
}

// LatestBankroll returns the newest bankroll snapshot; ok is false when
// none has been written
func (w *HolocronWriter) LatestBankroll(ctx context.Context) (models.Bankroll, bool, error) {
	q := `
		SELECT current_balance, week_start, week_exposure, week_started_at
		FROM handicapper_bankroll_snapshots
		ORDER BY id DESC
		LIMIT 1
	`

	var b models.Bankroll
	err := w.db.QueryRowContext(ctx, q).Scan(&b.Current, &b.WeekStart, &b.WeekExposure, &b.WeekStartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bankroll{}, false, nil
	}
	if err != nil {
		return models.Bankroll{}, false, fmt.Errorf("failed to query bankroll: %w", err)
	}
	b.WeekStartedAt = b.WeekStartedAt.UTC()
	return b, true, nil
}

// LoadCLVRecords returns every CLV record in placement order
func (w *HolocronWriter) LoadCLVRecords(ctx context.Context) ([]models.CLVRecord, error) {
	q := `
		SELECT id, recommendation_id, game_id, league, market_type, side,
		       home_team, away_team, kickoff, opening_line, opening_price, model_line,
		       stake, placed_at, closing_line, closing_price, closing_home_margin,
		       clv, closed_at, result, profit_loss, graded_at
		FROM handicapper_clv_records
		ORDER BY placed_at, id
	`

	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query clv records: %w", err)
	}
	defer rows.Close()

	var records []models.CLVRecord
	for rows.Next() {
		var (
			r                          models.CLVRecord
			marketType, side           string
			homeTeam, awayTeam, result sql.NullString
			stake                      decimal.Decimal
			profitLoss                 decimal.NullDecimal
			modelLine, closingLine     sql.NullFloat64
			closingHome, clv           sql.NullFloat64
			closingPrice               sql.NullInt64
			closedAt, gradedAt         sql.NullTime
		)

		err := rows.Scan(
			&r.ID,
			&r.RecommendationID,
			&r.GameID,
			&r.League,
			&marketType,
			&side,
			&homeTeam,
			&awayTeam,
			&r.Kickoff,
			&r.OpeningLine,
			&r.OpeningPrice,
			&modelLine,
			&stake,
			&r.PlacedAt,
			&closingLine,
			&closingPrice,
			&closingHome,
			&clv,
			&closedAt,
			&result,
			&profitLoss,
			&gradedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clv record: %w", err)
		}

		r.MarketType = models.MarketType(marketType)
		r.Side = models.Side(side)
		r.HomeTeam = homeTeam.String
		r.AwayTeam = awayTeam.String
		r.Stake = stake
		r.ModelLine = floatPtr(modelLine)
		r.ClosingLine = floatPtr(closingLine)
		r.ClosingHome = floatPtr(closingHome)
		r.CLV = floatPtr(clv)
		r.ClosedAt = timePtr(closedAt)
		r.GradedAt = timePtr(gradedAt)
		if closingPrice.Valid {
			price := int(closingPrice.Int64)
			r.ClosingPrice = &price
		}
		if result.Valid {
			outcome := models.Outcome(result.String)
			r.Result = &outcome
		}
		if profitLoss.Valid {
			pl := profitLoss.Decimal
			r.ProfitLoss = &pl
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clv records: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
