package landing

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestWritePartitionsByUTCHour(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	env := Envelope{
		RunID:          "run-1",
		FetchTimestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:         "coingecko",
		NumRecords:     2,
		Data:           json.RawMessage(`[{"id":"bitcoin"},{"id":"ethereum"}]`),
	}

	path, err := store.Write(ctx, env)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "raw/coingecko/2024/01/02/03/coingecko_20240102_030405.json"
	if path != want {
		t.Errorf("object path = %q, want %q", path, want)
	}
}

func TestWriteRejectsDuplicateObject(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	env := Envelope{
		RunID:          "run-1",
		FetchTimestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:         "coingecko",
		Data:           json.RawMessage(`[]`),
	}

	if _, err := store.Write(ctx, env); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if _, err := store.Write(ctx, env); err == nil {
		t.Error("second Write of same object should fail: landing zone is append-only")
	}
}

func TestListReturnsObjectsInIngestionOrder(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	times := []time.Time{
		time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC),
	}
	for i, ts := range times {
		env := Envelope{
			RunID:          "run",
			FetchTimestamp: ts,
			Source:         "feargreed_index",
			NumRecords:     i,
			Data:           json.RawMessage(`[]`),
		}
		if _, err := store.Write(ctx, env); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	objects, err := store.List(ctx, "feargreed_index")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("List returned %d objects, want 3", len(objects))
	}
	for i := 1; i < len(objects); i++ {
		if objects[i-1].Path >= objects[i].Path {
			t.Errorf("objects out of order: %q before %q", objects[i-1].Path, objects[i].Path)
		}
	}
}

func TestListUnknownSourceIsEmpty(t *testing.T) {
	store := NewFSStore(t.TempDir())
	objects, err := store.List(context.Background(), "nope")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("List of unknown source returned %d objects", len(objects))
	}
}

func TestReadRoundTrip(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	env := Envelope{
		RunID:          "run-42",
		FetchTimestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Source:         "coingecko",
		NumRecords:     1,
		Data:           json.RawMessage(`[{"id":"bitcoin","current_price":65000.5}]`),
	}

	path, err := store.Write(ctx, env)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.RunID != env.RunID || got.Source != env.Source || got.NumRecords != env.NumRecords {
		t.Errorf("Read returned %+v, want %+v", got, env)
	}
	if !got.FetchTimestamp.Equal(env.FetchTimestamp) {
		t.Errorf("FetchTimestamp = %v, want %v", got.FetchTimestamp, env.FetchTimestamp)
	}

	var records []map[string]any
	if err := json.Unmarshal(got.Data, &records); err != nil {
		t.Fatalf("payload did not survive round trip: %v", err)
	}
	if len(records) != 1 || records[0]["id"] != "bitcoin" {
		t.Errorf("unexpected payload: %v", records)
	}
}
