package harvest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMemoryStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ref, err := store.Put(ctx, "documents/a.pdf", bytes.NewBufferString("%PDF-1.3"), DocumentMeta{
		Filename:    "recibo-ana-15-03-2024.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 8 {
		t.Fatalf("expected size 8, got %d", ref.Meta.Size)
	}

	reader, meta, err := store.Open(ctx, "documents/a.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(data) != "%PDF-1.3" {
		t.Fatalf("unexpected payload %q", data)
	}
	if meta.Filename != "recibo-ana-15-03-2024.pdf" {
		t.Fatalf("unexpected filename %q", meta.Filename)
	}

	if err := store.Delete(ctx, "documents/a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(ctx, "documents/a.pdf"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemoryTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()
	base := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	tick := 0
	tracker.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	okID, err := tracker.Start(ctx, ExportRecord{Template: TemplateReceipt, Format: FormatPDF, Filename: "a.pdf"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.SetState(ctx, okID, StateRunning); err != nil {
		t.Fatalf("set state: %v", err)
	}
	layout := PageLayout{CaptureWidth: 1600, CaptureHeight: 1200, PageWidthMM: 210, PageHeightMM: 157.5}
	if err := tracker.Complete(ctx, okID, ExportOutcome{DocumentKey: "documents/a.pdf", Bytes: 42, Layout: layout}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	failID, err := tracker.Start(ctx, ExportRecord{Template: TemplateSummary, Format: FormatPDF, Filename: "b.pdf"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.Fail(ctx, failID, errors.New("export failed")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	done, err := tracker.Status(ctx, okID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if done.State != StateCompleted || done.Bytes != 42 || done.Layout != layout {
		t.Fatalf("unexpected completed record %+v", done)
	}
	if done.StartedAt.IsZero() || done.CompletedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	failed, err := tracker.Status(ctx, failID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if failed.State != StateFailed || failed.Error != "export failed" {
		t.Fatalf("unexpected failed record %+v", failed)
	}

	list, err := tracker.List(ctx, ExportFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != failID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	onlyFailed, err := tracker.List(ctx, ExportFilter{State: StateFailed})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].ID != failID {
		t.Fatalf("expected failed record only, got %+v", onlyFailed)
	}

	if err := tracker.SetState(ctx, "missing", StateRunning); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
