package glucose

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/stretchr/testify/require"
)

const graphBody = `{"status":0,"data":{
  "connection":{"targetLow":70,"targetHigh":180},
  "graphData":[
    {"Timestamp":"3/1/2024 1:05:00 PM","Value":65,"isHigh":false,"isLow":true},
    {"Timestamp":"3/1/2024 1:20:00 PM","Value":190,"isHigh":false,"isLow":false}
  ]}}`

// fake graph source
type fakeGraph struct {
	resp *libre.Response
	err  error
}

func (f *fakeGraph) Graph(ctx context.Context, token, userID, accountID string) (*libre.Response, error) {
	return f.resp, f.err
}

func session() *sessions.Session {
	return &sessions.Session{Token: "T", UserID: "U1", AccountID: "A1"}
}

func TestFetchDecodesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/llu/connections/U1/graph", r.URL.Path)
		require.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		require.Equal(t, "A1", r.Header.Get("Account-Id"))
		_, _ = w.Write([]byte(graphBody))
	}))
	defer srv.Close()

	client := libre.NewClient(config.LibreConfig{BaseURL: srv.URL, Version: "4.7", Product: "llu.android", Timeout: time.Second}, nil)
	b, err := NewFetcher(client, time.UTC).Fetch(context.Background(), session())
	require.NoError(t, err)
	require.Equal(t, TargetRange{Low: 70, High: 180}, b.Range)
	require.Len(t, b.Readings, 2)
	require.Equal(t, time.Date(2024, 3, 1, 13, 5, 0, 0, time.UTC), b.Readings[0].Timestamp)
	require.True(t, b.Readings[0].IsLow)
	require.Equal(t, 190.0, b.Readings[1].Value)
}

func TestFetchUnauthorized(t *testing.T) {
	f := NewFetcher(&fakeGraph{resp: &libre.Response{Status: http.StatusUnauthorized}}, time.UTC)
	_, err := f.Fetch(context.Background(), session())
	require.True(t, IsUnauthorized(err))
}

func TestFetchErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		src  *fakeGraph
		want ErrorKind
	}{
		{"network", &fakeGraph{err: errors.New("timeout")}, Network},
		{"remote 500", &fakeGraph{resp: &libre.Response{Status: 500, Body: []byte(`{"message":"down"}`)}}, RemoteError},
		{"not json", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`<html>`)}}, MalformedResponse},
		{"no data", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`{"status":0}`)}}, MalformedResponse},
		{"no connection", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`{"data":{"graphData":[]}}`)}}, MalformedResponse},
		{"no graphData", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`{"data":{"connection":{"targetLow":70,"targetHigh":180}}}`)}}, MalformedResponse},
		{"inverted range", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`{"data":{"connection":{"targetLow":180,"targetHigh":70},"graphData":[]}}`)}}, MalformedResponse},
		{"bad timestamp", &fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(`{"data":{"connection":{"targetLow":70,"targetHigh":180},"graphData":[{"Timestamp":"yesterday","Value":100}]}}`)}}, MalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFetcher(tc.src, time.UTC).Fetch(context.Background(), session())
			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, tc.want, fe.Kind)
		})
	}
}

func TestFetchEmptyGraphIsNotAnError(t *testing.T) {
	body := `{"data":{"connection":{"targetLow":70,"targetHigh":180},"graphData":[]}}`
	b, err := NewFetcher(&fakeGraph{resp: &libre.Response{Status: 200, Body: []byte(body)}}, time.UTC).Fetch(context.Background(), session())
	require.NoError(t, err)
	require.Empty(t, b.Readings)
	require.True(t, Process(b.Range, b.Readings).Empty())
}
