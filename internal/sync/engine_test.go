package sync

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/store"
	"github.com/lumastack/routelog/internal/testutil"
	"github.com/lumastack/routelog/internal/wire"
)

const testOrigin = "https://api.example.com"

var testCfg = wire.Config{APIURL: testOrigin, APIKey: "k-test"}

func newTestEngine(t *testing.T, rules ...testutil.Rule) (*Engine, *store.Store, *testutil.ScriptedTransport) {
	t.Helper()
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := testutil.NewScriptedTransport(rules...)
	e := New(st, testCfg, Options{Client: tr.Client()})
	return e, st, tr
}

func testRecord(date string) day.Record {
	rec := day.NewDefaultRecord(date, day.DefaultSettings())
	rec.Stops[1].Address = "Ялта, ул. Московская 14"
	rec.Stops[1].Status = day.StatusDone
	return rec
}

func TestSendDay_FirstCandidateAccepted(t *testing.T) {
	e, _, tr := newTestEngine(t,
		testutil.Rule{Method: "POST", URL: testOrigin + "/api/routes", Status: 200, Body: `{"ok":true}`},
	)

	ack, err := e.SendDay(context.Background(), testRecord("2024-03-01"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(ack))
	require.Len(t, tr.Calls(), 1)
}

func TestSendDay_AuthAbortsImmediately(t *testing.T) {
	e, _, tr := newTestEngine(t,
		testutil.Rule{Method: "POST", URL: testOrigin + "/api/routes", Status: 401},
	)

	_, err := e.SendDay(context.Background(), testRecord("2024-03-01"))
	require.ErrorIs(t, err, ErrUnauthorized)

	// No further candidates and no fallback after an auth rejection.
	require.Len(t, tr.Calls(), 1)
	assert.False(t, IsInfrastructure(err))
}

func TestSendDay_FallsThroughToMergePut(t *testing.T) {
	remote := wire.Document{}
	remote.Upsert("2024-02-28", wire.Payload{Date: "2024-02-28"})
	remoteJSON, err := json.Marshal(remote)
	require.NoError(t, err)

	e, _, tr := newTestEngine(t,
		testutil.Rule{Method: "POST", Status: 404},
		testutil.Rule{Method: "GET", URL: testOrigin + "/api/data/routes.json", Status: 404},
		testutil.Rule{Method: "GET", URL: testOrigin + "/routes.json", Status: 200, Body: string(remoteJSON)},
		testutil.Rule{Method: "PUT", URL: testOrigin + "/api/save/routes.json", Status: 200, Body: `{"saved":true}`},
	)

	ack, err := e.SendDay(context.Background(), testRecord("2024-03-01"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved":true}`, string(ack))

	calls := tr.Calls()
	var urls []string
	for _, c := range calls {
		urls = append(urls, c.Method+" "+c.URL)
	}
	assert.Equal(t, []string{
		"POST " + testOrigin + "/api/routes",
		"POST " + testOrigin + "/api/routes/",
		"POST " + wire.DefaultOrigin + "/api/routes",
		"GET " + testOrigin + "/api/data/routes.json",
		"GET " + testOrigin + "/routes.json",
		"PUT " + testOrigin + "/api/save/routes.json",
	}, urls)

	// The merged document keeps the unrelated remote date.
	var put wire.Document
	require.NoError(t, json.Unmarshal(calls[len(calls)-1].Body, &put))
	assert.Contains(t, put.Days, "2024-02-28")
	assert.Contains(t, put.Days, "2024-03-01")
	assert.Equal(t, wire.LabelDone, put.Days["2024-03-01"].Stops[1].Status)
}

func TestSendDay_FallbackWriteAuthAborts(t *testing.T) {
	e, _, _ := newTestEngine(t,
		testutil.Rule{Method: "POST", Status: 404},
		testutil.Rule{Method: "GET", Status: 404},
		testutil.Rule{Method: "PUT", URL: testOrigin + "/api/save/routes.json", Status: 403},
	)

	_, err := e.SendDay(context.Background(), testRecord("2024-03-01"))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSendDay_ExhaustionIsInfrastructure(t *testing.T) {
	e, _, _ := newTestEngine(t, testutil.Rule{Status: 0}) // everything refuses

	_, err := e.SendDay(context.Background(), testRecord("2024-03-01"))
	require.ErrorIs(t, err, ErrFallbackFailed)
	assert.True(t, IsInfrastructure(err))
}

func TestSubmit_SuccessMarksSentAndDequeues(t *testing.T) {
	e, st, _ := newTestEngine(t,
		testutil.Rule{Method: "POST", URL: testOrigin + "/api/routes", Status: 200, Body: `{}`},
	)
	ctx := context.Background()
	rec := testRecord("2024-03-01")
	require.NoError(t, st.SaveDay(ctx, rec))
	require.NoError(t, st.Enqueue(ctx, rec.Date))

	res, err := e.Submit(ctx, rec)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.False(t, res.Queued)

	stored, err := st.LoadDay(ctx, rec.Date)
	require.NoError(t, err)
	assert.True(t, stored.Sent)

	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestSubmit_InfrastructureFailureEnqueues(t *testing.T) {
	var hooked []string
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := testutil.NewScriptedTransport(testutil.Rule{Status: 0})
	e := New(st, testCfg, Options{
		Client:   tr.Client(),
		OnQueued: func(date string) { hooked = append(hooked, date) },
	})

	ctx := context.Background()
	res, err := e.Submit(ctx, testRecord("2024-03-01"))
	require.Error(t, err)
	assert.True(t, res.Queued)
	assert.False(t, res.Sent)
	assert.Equal(t, []string{"2024-03-01"}, hooked)

	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01"}, dates)

	// Record is untouched: not marked sent by a failed attempt.
	stored, err := st.LoadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.False(t, stored.Sent)
}

func TestSubmit_AuthFailureNeverQueued(t *testing.T) {
	e, st, _ := newTestEngine(t,
		testutil.Rule{Method: "POST", URL: testOrigin + "/api/routes", Status: 401},
	)
	ctx := context.Background()

	res, err := e.Submit(ctx, testRecord("2024-03-01"))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, res.Queued)

	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestSubmit_ConcurrentSendRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.True(t, e.beginSend("2024-03-01"))
	defer e.endSend("2024-03-01")

	_, err := e.Submit(context.Background(), testRecord("2024-03-01"))
	require.ErrorIs(t, err, ErrSendInFlight)
}

func TestProcessQueue_DrainsInOrder(t *testing.T) {
	e, st, tr := newTestEngine(t,
		testutil.Rule{Method: "POST", URL: testOrigin + "/api/routes", Status: 200, Body: `{}`},
	)
	ctx := context.Background()
	for _, date := range []string{"2024-03-01", "2024-03-02"} {
		require.NoError(t, st.SaveDay(ctx, testRecord(date)))
		require.NoError(t, st.Enqueue(ctx, date))
	}

	require.NoError(t, e.ProcessQueue(ctx))

	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, string(calls[0].Body), "2024-03-01")
	assert.Contains(t, string(calls[1].Body), "2024-03-02")

	for _, date := range []string{"2024-03-01", "2024-03-02"} {
		rec, err := st.LoadDay(ctx, date)
		require.NoError(t, err)
		assert.True(t, rec.Sent)
	}
}

func TestProcessQueue_StopsOnFirstFailure(t *testing.T) {
	e, st, tr := newTestEngine(t, testutil.Rule{Status: 0})
	ctx := context.Background()
	for _, date := range []string{"2024-03-01", "2024-03-02"} {
		require.NoError(t, st.SaveDay(ctx, testRecord(date)))
		require.NoError(t, st.Enqueue(ctx, date))
	}

	err := e.ProcessQueue(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-03-01")

	// The second date was never attempted and both stay queued.
	for _, c := range tr.Calls() {
		assert.False(t, strings.Contains(string(c.Body), "2024-03-02"),
			"second queued date must not be attempted after a failure")
	}
	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, dates)
}

func TestProcessQueue_OfflineIsNoop(t *testing.T) {
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := testutil.NewScriptedTransport()
	e := New(st, testCfg, Options{
		Client: tr.Client(),
		Probe:  ProbeFunc(func(context.Context) bool { return false }),
	})

	ctx := context.Background()
	require.NoError(t, st.Enqueue(ctx, "2024-03-01"))
	require.NoError(t, e.ProcessQueue(ctx))
	assert.Empty(t, tr.Calls())

	dates, err := st.QueuedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01"}, dates)
}

func TestFetchDay(t *testing.T) {
	remote := wire.Document{}
	remote.Upsert("2024-03-01", wire.Payload{Date: "2024-03-01", DistanceKm: 12.5})
	remoteJSON, err := json.Marshal(remote)
	require.NoError(t, err)

	e, _, _ := newTestEngine(t,
		testutil.Rule{Method: "GET", URL: testOrigin + "/api/data/routes.json", Status: 404},
		testutil.Rule{Method: "GET", URL: testOrigin + "/routes.json", Status: 200, Body: string(remoteJSON)},
	)

	p, ok := e.FetchDay(context.Background(), "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, 12.5, p.DistanceKm)

	_, ok = e.FetchDay(context.Background(), "2024-01-01")
	assert.False(t, ok)
}

func TestFetchDay_LegacyRejectReasonSynonym(t *testing.T) {
	body := `{"days":{"2024-03-01":{"date":"2024-03-01","stops":[{"id":"a","declineReason":"закрыто"}]}}}`
	e, _, _ := newTestEngine(t,
		testutil.Rule{Method: "GET", URL: testOrigin + "/api/data/routes.json", Status: 200, Body: body},
	)

	p, ok := e.FetchDay(context.Background(), "2024-03-01")
	require.True(t, ok)
	require.Len(t, p.Stops, 1)
	assert.Equal(t, "закрыто", p.Stops[0].RejectReason)
}
