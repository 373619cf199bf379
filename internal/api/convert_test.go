package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"phototag/internal/api"
	"phototag/internal/queue"
	"phototag/internal/services"
	"phototag/internal/testsupport"
)

func TestFromPhotoAlwaysEmitsTagsArray(t *testing.T) {
	dto := api.FromPhoto(&queue.Photo{ID: 4, Filename: "x.jpg", State: queue.StatePending})
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"tags":[]`) {
		t.Fatalf("expected empty tags array, got %s", data)
	}
	if strings.Contains(string(data), "tagged_at") {
		t.Fatalf("untagged photo should omit tagged_at: %s", data)
	}
}

func TestFromPhotoFormatsTimes(t *testing.T) {
	tagged := time.Date(2024, 5, 2, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	dto := api.FromPhoto(&queue.Photo{ID: 1, TaggedAt: &tagged, CreatedAt: tagged})
	if dto.TaggedAt != "2024-05-02T06:00:00.000Z" || dto.CreatedAt != dto.TaggedAt {
		t.Fatalf("unexpected timestamps %+v", dto)
	}
}

func TestFromStatsFillsEveryState(t *testing.T) {
	dto := api.FromStats(queue.Stats{States: map[queue.State]int{queue.StateTagged: 2}, QueueDepth: 1})
	for _, state := range queue.AllStates() {
		if _, ok := dto.Counts[string(state)]; !ok {
			t.Fatalf("missing count for %s", state)
		}
	}
	if dto.Counts["tagged"] != 2 || dto.QueueDepth != 1 {
		t.Fatalf("unexpected stats %+v", dto)
	}
}

func TestPhotoServiceQueries(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	photo := testsupport.InsertPhoto(t, store, "2024-05-01")
	svc := api.NewPhotoService(store)

	photos, err := svc.Find(ctx, queue.Filter{CaptureDate: "2024-05-01"})
	if err != nil || len(photos) != 1 || photos[0].ID != photo.ID {
		t.Fatalf("Find = %+v, %v", photos, err)
	}
	described, err := svc.Describe(ctx, photo.ID)
	if err != nil || described.State != "pending" {
		t.Fatalf("Describe = %+v, %v", described, err)
	}
	if _, err := svc.Describe(ctx, photo.ID+100); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	entries, err := svc.Entries(ctx, 10)
	if err != nil || len(entries) != 1 || entries[0].PhotoID != photo.ID || entries[0].LeaseOwner != "" {
		t.Fatalf("Entries = %+v, %v", entries, err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil || stats.Counts["pending"] != 1 || stats.QueueDepth != 1 {
		t.Fatalf("Stats = %+v, %v", stats, err)
	}

	var nilSvc *api.PhotoService
	if _, err := nilSvc.Find(ctx, queue.Filter{}); err == nil {
		t.Fatal("nil service should report unavailable store")
	}
}
