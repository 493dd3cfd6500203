package trackerbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-harvest/harvest"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Tracker stores export history in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

var _ harvest.Tracker = (*Tracker)(nil)

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: defaultIDGenerator()}
}

// OpenSession opens a named in-memory SQLite database that lives as long as
// the returned handle.
func OpenSession(ctx context.Context, name string) (*bun.DB, error) {
	if name == "" {
		name = "harvest"
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}
	// a shared in-memory database disappears with its last connection
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the export history table.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if err := t.ready(); err != nil {
		return err
	}
	_, err := t.DB.NewCreateTable().Model((*recordModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start creates a new export record.
func (t *Tracker) Start(ctx context.Context, record harvest.ExportRecord) (string, error) {
	if err := t.ready(); err != nil {
		return "", err
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = harvest.StateQueued
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}

	model := modelFromRecord(record)
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// SetState updates the export state.
func (t *Tracker) SetState(ctx context.Context, id string, state harvest.ExportState) error {
	query, err := t.update(id)
	if err != nil {
		return err
	}
	query = query.Set("state = ?", string(state))
	if state == harvest.StateRunning {
		query = query.Set("started_at = COALESCE(started_at, ?)", t.now())
	}
	return t.exec(ctx, id, query)
}

// Fail marks the export as failed and keeps the error message.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	query, err := t.update(id)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	query = query.
		Set("state = ?", string(harvest.StateFailed)).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now())
	return t.exec(ctx, id, query)
}

// Complete marks the export as completed with its delivered document.
func (t *Tracker) Complete(ctx context.Context, id string, outcome harvest.ExportOutcome) error {
	query, err := t.update(id)
	if err != nil {
		return err
	}
	query = query.
		Set("state = ?", string(harvest.StateCompleted)).
		Set("document_key = ?", outcome.DocumentKey).
		Set("bytes = ?", outcome.Bytes).
		Set("capture_width = ?", outcome.Layout.CaptureWidth).
		Set("capture_height = ?", outcome.Layout.CaptureHeight).
		Set("page_width_mm = ?", outcome.Layout.PageWidthMM).
		Set("page_height_mm = ?", outcome.Layout.PageHeightMM).
		Set("completed_at = COALESCE(completed_at, ?)", t.now())
	return t.exec(ctx, id, query)
}

// Status returns a record by ID.
func (t *Tracker) Status(ctx context.Context, id string) (harvest.ExportRecord, error) {
	if err := t.ready(); err != nil {
		return harvest.ExportRecord{}, err
	}
	if id == "" {
		return harvest.ExportRecord{}, harvest.NewError(harvest.KindValidation, "export ID is required", nil)
	}

	model := new(recordModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return harvest.ExportRecord{}, notFound(id)
		}
		return harvest.ExportRecord{}, err
	}
	return model.toRecord(), nil
}

// List returns records newest first.
func (t *Tracker) List(ctx context.Context, filter harvest.ExportFilter) ([]harvest.ExportRecord, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	models := make([]recordModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}
	if filter.Template != "" {
		query = query.Where("template = ?", string(filter.Template))
	}
	query = query.Order("created_at DESC", "seq DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]harvest.ExportRecord, 0, len(models))
	for _, model := range models {
		records = append(records, model.toRecord())
	}
	return records, nil
}

func (t *Tracker) update(id string) (*bun.UpdateQuery, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, harvest.NewError(harvest.KindValidation, "export ID is required", nil)
	}
	return t.DB.NewUpdate().Model((*recordModel)(nil)).Where("id = ?", id), nil
}

func (t *Tracker) exec(ctx context.Context, id string, query *bun.UpdateQuery) error {
	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func (t *Tracker) ready() error {
	if t == nil || t.DB == nil {
		return harvest.NewError(harvest.KindNotImpl, "tracker database not configured", nil)
	}
	return nil
}

func notFound(id string) error {
	return harvest.NewError(harvest.KindNotFound, fmt.Sprintf("export %q not found", id), nil)
}

type recordModel struct {
	bun.BaseModel `bun:"table:harvest_exports,alias:he"`

	ID            string    `bun:",pk"`
	Seq           int64     `bun:"seq"`
	Template      string    `bun:",notnull"`
	Format        string    `bun:",notnull"`
	EntryID       int64     `bun:"entry_id"`
	Filename      string    `bun:",notnull"`
	State         string    `bun:",notnull"`
	Error         string    `bun:"error"`
	DocumentKey   string    `bun:"document_key"`
	Bytes         int64     `bun:"bytes"`
	CaptureWidth  int       `bun:"capture_width"`
	CaptureHeight int       `bun:"capture_height"`
	PageWidthMM   float64   `bun:"page_width_mm"`
	PageHeightMM  float64   `bun:"page_height_mm"`
	CreatedAt     time.Time `bun:"created_at"`
	StartedAt     time.Time `bun:"started_at,nullzero"`
	CompletedAt   time.Time `bun:"completed_at,nullzero"`
}

var sequence atomic.Int64

func modelFromRecord(record harvest.ExportRecord) recordModel {
	return recordModel{
		ID:            record.ID,
		Seq:           sequence.Add(1),
		Template:      string(record.Template),
		Format:        string(record.Format),
		EntryID:       record.EntryID,
		Filename:      record.Filename,
		State:         string(record.State),
		Error:         record.Error,
		DocumentKey:   record.DocumentKey,
		Bytes:         record.Bytes,
		CaptureWidth:  record.Layout.CaptureWidth,
		CaptureHeight: record.Layout.CaptureHeight,
		PageWidthMM:   record.Layout.PageWidthMM,
		PageHeightMM:  record.Layout.PageHeightMM,
		CreatedAt:     record.CreatedAt,
		StartedAt:     record.StartedAt,
		CompletedAt:   record.CompletedAt,
	}
}

func (m recordModel) toRecord() harvest.ExportRecord {
	return harvest.ExportRecord{
		ID:          m.ID,
		Template:    harvest.TemplateKind(m.Template),
		Format:      harvest.Format(m.Format),
		EntryID:     m.EntryID,
		Filename:    m.Filename,
		State:       harvest.ExportState(m.State),
		Error:       m.Error,
		DocumentKey: m.DocumentKey,
		Bytes:       m.Bytes,
		Layout: harvest.PageLayout{
			CaptureWidth:  m.CaptureWidth,
			CaptureHeight: m.CaptureHeight,
			PageWidthMM:   m.PageWidthMM,
			PageHeightMM:  m.PageHeightMM,
		},
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return defaultIDGenerator()()
}

func defaultIDGenerator() func() string {
	var counter uint64
	return func() string {
		id := atomic.AddUint64(&counter, 1)
		return fmt.Sprintf("exp-%d", id)
	}
}
