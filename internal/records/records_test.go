// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package records

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/store"
)

func newTestService(t *testing.T) (*Service, *queue.Queue, *store.Store) {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	q, err := queue.New(st, queue.DefaultConfig())
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	return New(st, q), q, st
}

func complaintRequest(body string) queue.Request {
	return queue.Request{
		TargetURL: "/api/complaints/",
		Method:    http.MethodPost,
		Headers:   map[string]string{"Content-Type": "application/json"},
		Body:      []byte(body),
	}
}

const complaintBody = `{"title":"Broken light","description":"Street light out on 5th"}`

func TestCreateOffline_LinksRecordAndEntry(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	meta := created.Record.Meta()
	if meta.ID == 0 || meta.LocalID != meta.ID {
		t.Errorf("ID = %d, LocalID = %d", meta.ID, meta.LocalID)
	}
	if meta.SyncStatus != models.SyncPending || !meta.IsOffline {
		t.Errorf("meta = %+v, want pending offline", meta)
	}
	if meta.QueueID != created.Entry.ID {
		t.Errorf("QueueID = %d, want %d", meta.QueueID, created.Entry.ID)
	}

	entry, err := q.Get(ctx, created.Entry.ID)
	if err != nil {
		t.Fatalf("Get entry failed: %v", err)
	}
	if entry.Action != queue.ActionCreate || entry.Model != models.ModelComplaints || entry.LocalID != meta.ID {
		t.Errorf("entry = %+v", entry)
	}
	if string(entry.Payload) != complaintBody {
		t.Errorf("Payload = %s", entry.Payload)
	}

	got, err := svc.Get(ctx, models.ModelComplaints, meta.ID)
	if err != nil {
		t.Fatalf("Get record failed: %v", err)
	}
	c := got.(*models.Complaint)
	if c.Title != "Broken light" || c.QueueID != entry.ID || c.CreatedAt == nil {
		t.Errorf("stored complaint = %+v", c)
	}
}

func TestCreateOffline_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		body    string
		wantErr error
	}{
		{"unknown model", "widgets", `{}`, ErrUnsupportedModel},
		{"users", models.ModelUsers, `{"email":"a@b.c"}`, ErrUnsupportedModel},
		{"malformed json", models.ModelComplaints, `{`, ErrInvalidBody},
		{"missing title", models.ModelComplaints, `{"description":"x"}`, ErrInvalidBody},
		{"bad report type", models.ModelReports, `{"name":"r","report_type":"NOPE"}`, ErrInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, q, _ := newTestService(t)
			ctx := context.Background()
			_, err := svc.CreateOffline(ctx, tt.model, []byte(tt.body), complaintRequest(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			pending, err := q.PendingEntries(ctx)
			if err != nil {
				t.Fatalf("PendingEntries failed: %v", err)
			}
			if len(pending) != 0 {
				t.Errorf("Rejected create left %d queue entries", len(pending))
			}
		})
	}
}

func TestCreateOffline_ReportTypeCopied(t *testing.T) {
	svc, _, _ := newTestService(t)
	body := `{"name":"Monthly","report_type":"PERFORMANCE"}`
	req := queue.Request{TargetURL: "/api/reports/", Method: http.MethodPost, Body: []byte(body)}

	created, err := svc.CreateOffline(context.Background(), models.ModelReports, []byte(body), req)
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	if r := created.Record.(*models.Report); r.Type != "PERFORMANCE" {
		t.Errorf("Type = %q, want PERFORMANCE", r.Type)
	}
}

func TestCreateOffline_QueueFullRollsBackRecord(t *testing.T) {
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cfg := queue.DefaultConfig()
	cfg.MaxEntries = 1
	q, err := queue.New(st, cfg)
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	svc := New(st, q)
	ctx := context.Background()

	if _, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody)); err != nil {
		t.Fatalf("first CreateOffline failed: %v", err)
	}
	_, err = svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	if !store.IsQuotaExceeded(err) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
	n, err := st.Count(ctx, models.ModelComplaints)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("complaints = %d, want 1", n)
	}
}

func TestOnSynced_RemapsToServerID(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	localID := created.Record.Meta().ID
	serverID := int64(9001)

	entry, err := q.MarkSynced(ctx, created.Entry.ID, &serverID)
	if err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	if err := svc.OnSynced(ctx, entry, &serverID); err != nil {
		t.Fatalf("OnSynced failed: %v", err)
	}

	if _, err := svc.Get(ctx, models.ModelComplaints, localID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("local record still present: %v", err)
	}
	got, err := svc.Get(ctx, models.ModelComplaints, serverID)
	if err != nil {
		t.Fatalf("Get server record failed: %v", err)
	}
	meta := got.Meta()
	if meta.SyncStatus != models.SyncSynced || meta.IsOffline || meta.LocalID != localID {
		t.Errorf("meta = %+v", meta)
	}
}

func TestOnSynced_WithoutServerIDKeepsLocalKey(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	entry, _ := q.Get(ctx, created.Entry.ID)
	if err := svc.OnSynced(ctx, entry, nil); err != nil {
		t.Fatalf("OnSynced failed: %v", err)
	}
	got, err := svc.Get(ctx, models.ModelComplaints, created.Record.Meta().ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Meta().SyncStatus != models.SyncSynced {
		t.Errorf("SyncStatus = %s", got.Meta().SyncStatus)
	}
}

func TestOnSynced_ServerIDHeldByOfflineRecord(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	second, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}

	// The upstream hands the first record the id of the second local one.
	serverID := second.Record.Meta().ID
	entry, _ := q.Get(ctx, first.Entry.ID)
	if err := svc.OnSynced(ctx, entry, &serverID); err != nil {
		t.Fatalf("OnSynced failed: %v", err)
	}

	kept, err := svc.Get(ctx, models.ModelComplaints, first.Record.Meta().ID)
	if err != nil {
		t.Fatalf("first record moved: %v", err)
	}
	if kept.Meta().SyncStatus != models.SyncSynced {
		t.Errorf("first SyncStatus = %s", kept.Meta().SyncStatus)
	}
	other, err := svc.Get(ctx, models.ModelComplaints, serverID)
	if err != nil {
		t.Fatalf("second record lost: %v", err)
	}
	if !other.Meta().IsOffline {
		t.Error("second record was overwritten")
	}
}

func TestOnSynced_IgnoresNonCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	entry := &queue.Entry{Action: queue.ActionUpdate, Model: models.ModelComplaints, LocalID: 5}
	if err := svc.OnSynced(context.Background(), entry, nil); err != nil {
		t.Errorf("OnSynced = %v, want nil", err)
	}
}

func TestOnAbandoned_MarksFailed(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody))
	entry, _ := q.Get(ctx, created.Entry.ID)
	if err := svc.OnAbandoned(ctx, entry); err != nil {
		t.Fatalf("OnAbandoned failed: %v", err)
	}

	failed, err := svc.List(ctx, models.ModelComplaints, models.SyncFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("failed records = %d, want 1", len(failed))
	}
	pending, _ := svc.List(ctx, models.ModelComplaints, models.SyncPending)
	if len(pending) != 0 {
		t.Errorf("pending records = %d, want 0", len(pending))
	}
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateOffline(ctx, models.ModelComplaints, []byte(complaintBody), complaintRequest(complaintBody)); err != nil {
			t.Fatalf("CreateOffline failed: %v", err)
		}
	}
	all, err := svc.List(ctx, models.ModelComplaints, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List = %d, want 3", len(all))
	}
	if _, err := svc.List(ctx, "widgets", ""); !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("List(widgets) = %v", err)
	}
	if _, err := svc.List(ctx, models.ModelUsers, models.SyncPending); !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("List(users, pending) = %v", err)
	}
}
