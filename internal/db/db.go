package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
)

// Exchange is the stored row of one answered (or failed) question
type Exchange struct {
	bun.BaseModel `bun:"table:exchanges,alias:e"`
	ID            string    `bun:"id,pk"`
	Source        string    `bun:"source,notnull"`
	Question      string    `bun:"question,notnull"`
	Answer        string    `bun:"answer,notnull"`
	Failed        bool      `bun:"failed,notnull,default:false"`
	LatencyMS     int64     `bun:"latency_ms,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func fromModel(ex models.Exchange) *Exchange {
	return &Exchange{
		ID:        ex.ID,
		Source:    ex.Source,
		Question:  ex.Question,
		Answer:    ex.Answer,
		Failed:    ex.Failed,
		LatencyMS: ex.Latency.Milliseconds(),
		CreatedAt: ex.CreatedAt,
	}
}

func (e *Exchange) toModel() models.Exchange {
	return models.Exchange{
		ID:        e.ID,
		Source:    e.Source,
		Question:  e.Question,
		Answer:    e.Answer,
		Failed:    e.Failed,
		Latency:   time.Duration(e.LatencyMS) * time.Millisecond,
		CreatedAt: e.CreatedAt,
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a lazy connection pool; nothing is dialed until the first query
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Exchange)(nil)).IfNotExists().Exec(ctx)
	return err
}

func StoreExchange(ctx context.Context, db bun.IDB, ex models.Exchange) error {
	_, err := db.NewInsert().Model(fromModel(ex)).Exec(ctx)
	return err
}

// ListExchanges returns the latest exchanges, newest first
func ListExchanges(ctx context.Context, db bun.IDB, limit int) ([]models.Exchange, error) {
	var rows []Exchange
	err := db.NewSelect().
		Model(&rows).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	exchanges := make([]models.Exchange, len(rows))
	for i := range rows {
		exchanges[i] = rows[i].toModel()
	}
	return exchanges, nil
}

// drop table exchanges
func DropExchanges(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Exchange)(nil)).IfExists().Exec(ctx)
	return err
}

// History appends exchanges to Postgres. Write failures are logged and
// never reach the user.
type History struct {
	db bun.IDB
}

func NewHistory(db bun.IDB) *History {
	return &History{db: db}
}

// List returns the latest stored exchanges, newest first
func (h *History) List(ctx context.Context, limit int) ([]models.Exchange, error) {
	return ListExchanges(ctx, h.db, limit)
}

func (h *History) Record(ctx context.Context, ex models.Exchange) {
	if err := StoreExchange(ctx, h.db, ex); err != nil {
		log.Warn().Err(err).Str("id", ex.ID).Msg("Failed to store exchange")
	}
}
