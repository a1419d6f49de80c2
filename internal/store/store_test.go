package store

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/geo"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(":memory:", opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadDay_AbsentCreatesAndPersistsDefault(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	rec, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, rec.Stops, day.MinStops)
	assert.Equal(t, day.ReasonPrepare, rec.Stops[0].Reason)
	assert.Equal(t, day.ReasonHandover, rec.Stops[2].Reason)
	assert.False(t, rec.Sent)

	// The default was persisted, not just synthesized: same IDs on reload.
	again, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, rec.Stops[0].ID, again.Stops[0].ID)
}

func TestLoadDay_CorruptRowSelfHeals(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO days (date, record) VALUES (?, ?)`,
		"2024-03-01", `{not json`)
	require.NoError(t, err)

	rec, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, rec.Stops, day.MinStops)

	// The healed default overwrote the corrupt row.
	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT record FROM days WHERE date = ?`, "2024-03-01").Scan(&raw))
	assert.JSONEq(t, mustJSON(t, rec), raw)
}

func TestSaveDay_RoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	rec.Stops[1].Address = "Ялта, ул. Московская 14"
	rec.DistanceKm = 37.4
	rec.Sent = true
	require.NoError(t, s.SaveDay(ctx, rec))

	got, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, rec.Stops, got.Stops)
	assert.Equal(t, 37.4, got.DistanceKm)
	assert.True(t, got.Sent)
}

func TestSaveDay_RequiresDate(t *testing.T) {
	s := newTestStore(t, Options{})
	err := s.SaveDay(context.Background(), day.Record{})
	require.Error(t, err)
}

func TestLoadDay_ShortRecordRepaired(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO days (date, record) VALUES (?, ?)`,
		"2024-03-01", `{"date":"2024-03-01","stops":[{"id":"only","address":"Ялта"}]}`)
	require.NoError(t, err)

	rec, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, rec.Stops, day.MinStops)
	assert.Equal(t, day.ReasonPrepare, rec.Stops[0].Reason)
}

func TestLoadDay_RepairIsPersisted(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	// Office pair with no middle stop and no office reasons.
	_, err := s.db.ExecContext(ctx, `INSERT INTO days (date, record) VALUES (?, ?)`,
		"2024-03-01",
		`{"date":"2024-03-01","stops":[{"id":"a","address":"офис","status":"done"},{"id":"b","address":"офис","status":"done"}]}`)
	require.NoError(t, err)

	first, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, first.Stops, day.MinStops)
	require.NotEmpty(t, first.Stops[1].ID)

	// The inserted middle stop keeps its identity on reload, so an ID
	// printed by one command stays addressable by the next.
	second, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, first.Stops[1].ID, second.Stops[1].ID)

	// And the stored row now holds the repaired shape.
	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT record FROM days WHERE date = ?`, "2024-03-01").Scan(&raw))
	var stored day.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored.Stops, day.MinStops)
	assert.Equal(t, day.ReasonPrepare, stored.Stops[0].Reason)
}

func TestOfficePolicy_AlwaysRefreshesEndpoints(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		policy day.OfficePolicy
		want   string
	}{
		{day.OfficeOnCreate, "старый адрес"},
		{day.OfficeAlways, day.DefaultSettings().StartAddress},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			s := newTestStore(t, Options{OfficePolicy: tc.policy})

			rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
			rec.Stops[0].Address = "старый адрес"
			require.NoError(t, s.SaveDay(ctx, rec))

			got, err := s.LoadDay(ctx, "2024-03-01")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Stops[0].Address)
		})
	}
}

func TestRemoveDay(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	require.NoError(t, s.SaveDay(ctx, rec))
	require.NoError(t, s.RemoveDay(ctx, "2024-03-01"))
	require.NoError(t, s.RemoveDay(ctx, "2024-03-01")) // idempotent

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestQueue_FIFOAndIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "2024-03-02"))
	require.NoError(t, s.Enqueue(ctx, "2024-03-01"))
	require.NoError(t, s.Enqueue(ctx, "2024-03-02")) // keeps original position

	dates, err := s.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-02", "2024-03-01"}, dates)

	require.NoError(t, s.Dequeue(ctx, "2024-03-02"))
	dates, err = s.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01"}, dates)
}

func TestQueue_EmptyIsNotNil(t *testing.T) {
	s := newTestStore(t, Options{})
	dates, err := s.QueuedDates(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, dates)
	assert.Empty(t, dates)
}

func TestSettings_MissingYieldsDefaults(t *testing.T) {
	s := newTestStore(t, Options{})
	got, err := s.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day.DefaultSettings(), got)
}

func TestSettings_StoredOverlaysDefaults(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.SaveSettings(ctx, day.Settings{StartAddress: "Симферополь, ул. Киевская 1"}))

	got, err := s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Симферополь, ул. Киевская 1", got.StartAddress)
	// Unset fields keep their defaults.
	assert.Equal(t, day.DefaultSettings().EndAddress, got.EndAddress)
	assert.NotEmpty(t, got.ReasonTemplates)
}

func TestSettings_CorruptRowYieldsDefaults(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (id, body) VALUES (1, ?)`, `broken{`)
	require.NoError(t, err)

	got, err := s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, day.DefaultSettings(), got)
}

func TestAddressHistory(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	a := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	a.Stops[1].Address = "  Ялта, ул. Московская 14 "
	require.NoError(t, s.SaveDay(ctx, a))

	b := day.NewDefaultRecord("2024-03-02", day.DefaultSettings())
	b.Stops[1].Address = "Ялта, ул. Московская 14"
	require.NoError(t, s.SaveDay(ctx, b))

	got, err := s.AddressHistory(ctx, 0)
	require.NoError(t, err)
	// Trimming collapses the duplicate; office address appears once too.
	assert.Equal(t, []string{
		day.DefaultSettings().StartAddress,
		"Ялта, ул. Московская 14",
	}, got)

	capped, err := s.AddressHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestGeocache_RoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, ok, err := s.CachedCoord(ctx, "Ялта")
	require.NoError(t, err)
	assert.False(t, ok)

	want := geo.Coord{Lat: 44.4952, Lon: 34.1663}
	require.NoError(t, s.PutCoord(ctx, " Ялта ", want))

	got, ok, err := s.CachedCoord(ctx, "Ялта")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDebouncer_CoalescesAndSupersedes(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	d := NewDebouncer(s, 30*time.Millisecond, nil)
	defer d.Stop()

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	rec.Stops[1].Address = "первый"
	d.Save(rec)
	rec.Stops[1].Address = "второй"
	d.Save(rec)

	require.Eventually(t, func() bool {
		got, err := s.LoadDay(ctx, "2024-03-01")
		return err == nil && got.Stops[1].Address == "второй"
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncer_LogsFailedBackgroundWrite(t *testing.T) {
	s, err := Open(":memory:", Options{})
	require.NoError(t, err)

	buf := &lockedBuffer{}
	log := slog.New(slog.NewTextHandler(buf, nil))
	d := NewDebouncer(s, 10*time.Millisecond, log)
	defer d.Stop()

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	d.Save(rec)
	require.NoError(t, s.Close()) // the deferred write now has nowhere to go

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "debounced save failed")
	}, time.Second, 10*time.Millisecond)
}

// lockedBuffer makes log output safe to read while the timer goroutine
// is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDebouncer_FlushWritesImmediately(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	d := NewDebouncer(s, time.Hour, nil)
	defer d.Stop()

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	rec.Stops[1].Address = "срочно"
	d.Save(rec)
	require.NoError(t, d.Flush(ctx))

	got, err := s.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "срочно", got.Stops[1].Address)
}

func TestDebouncer_StopDiscardsPending(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	d := NewDebouncer(s, 20*time.Millisecond, nil)

	rec := day.NewDefaultRecord("2024-03-01", day.DefaultSettings())
	rec.Stops[1].Address = "потеряно"
	d.Save(rec)
	d.Stop()
	d.Save(rec) // rejected after Stop

	time.Sleep(60 * time.Millisecond)
	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func mustJSON(t *testing.T, rec day.Record) string {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return string(b)
}
