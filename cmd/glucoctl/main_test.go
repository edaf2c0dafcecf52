package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/refresh"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/stretchr/testify/require"
)

func TestRenderSeries(t *testing.T) {
	base := time.Date(2024, 3, 1, 13, 5, 0, 0, time.UTC)
	s := glucose.Process(glucose.TargetRange{Low: 70, High: 180}, []glucose.Reading{
		{Timestamp: base, Value: 65},
		{Timestamp: base.Add(15 * time.Minute), Value: 212},
	})
	var buf bytes.Buffer
	render(&buf, refresh.View{State: refresh.Ready, Series: &s, UpdatedAt: base})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "target 70-180")
	require.Contains(t, lines[0], "axis 20-260")
	require.True(t, strings.HasPrefix(lines[1], "13:05   65.0 L |"))
	require.True(t, strings.HasPrefix(lines[2], "13:20  212.0 H |"))
}

func TestRenderClampsBarsOutsideAxis(t *testing.T) {
	s := glucose.Series{
		Range: glucose.TargetRange{Low: 70, High: 180},
		Axis:  &glucose.Axis{Min: 0, Max: 100},
		Points: []glucose.Point{
			{Label: "13:05", Value: -20, Class: glucose.Low},
			{Label: "13:20", Value: 150, Class: glucose.InRange},
		},
	}
	var buf bytes.Buffer
	require.NotPanics(t, func() { render(&buf, refresh.View{State: refresh.Ready, Series: &s}) })

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasSuffix(lines[1], "|"))
	require.True(t, strings.HasSuffix(lines[2], "|"+strings.Repeat("#", barWidth)))
}

func TestRenderEmpty(t *testing.T) {
	s := glucose.Process(glucose.TargetRange{Low: 70, High: 180}, nil)
	var buf bytes.Buffer
	render(&buf, refresh.View{State: refresh.Ready, Series: &s})
	require.Equal(t, "no glucose data\n", buf.String())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 2, run(context.Background(), nil, &out, &errOut))
	require.Equal(t, 2, run(context.Background(), []string{"bogus"}, &out, &errOut))
	require.Contains(t, errOut.String(), `unknown command "bogus"`)
	require.Equal(t, 0, run(context.Background(), []string{"help"}, &out, &errOut))
	require.Contains(t, out.String(), "watch")
}

func TestStatusAndLogout(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewStore(sessions.NewMemoryRepository(), sessions.DefaultKey)

	var out bytes.Buffer
	require.NoError(t, status(ctx, &out, store))
	require.Equal(t, "unauthenticated\n", out.String())

	require.NoError(t, store.Put(ctx, &sessions.Session{Token: "T", UserID: "U1", AccountID: "A1",
		IssuedAtMs: time.Now().UnixMilli(), DurationMs: 60000}))
	out.Reset()
	require.NoError(t, status(ctx, &out, store))
	require.True(t, strings.HasPrefix(out.String(), "authenticated user=U1 account=A1"))

	out.Reset()
	require.NoError(t, logout(ctx, &out, store, sessions.NewRevocations(nil)))
	require.Equal(t, "logged out\n", out.String())
	s, err := store.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, s)
}
