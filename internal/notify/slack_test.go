package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlack_PostsHeaderAndSection(t *testing.T) {
	var got slackPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	title, text := FormatAlert(Alert{Target: "192.0.2.1:80", Failures: 10, At: time.Date(2025, 6, 1, 12, 0, 9, 0, time.UTC)})
	require.NoError(t, NewSlack(ts.URL).Send(context.Background(), title, text))

	require.Equal(t, title, got.Text)
	require.Len(t, got.Blocks, 2)
	require.Equal(t, "header", got.Blocks[0].Type)
	require.Equal(t, title, got.Blocks[0].Text.Text)
	require.Contains(t, got.Blocks[1].Text.Text, "Consecutive failures: 10")
}

func TestSlack_Non2xxCarriesStatusAndBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), "X", "Y")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	require.Contains(t, err.Error(), "invalid_token")
}

func TestSlack_LongTextIsTruncated(t *testing.T) {
	msg := slackMessage("t", strings.Repeat("x", 5000))
	require.LessOrEqual(t, len(msg.Blocks[1].Text.Text), slackSectionLimit+len("``````")+len("…"))
}

func TestSlack_DisabledWithoutWebhook(t *testing.T) {
	require.Nil(t, NewSlack("  "))
	var s *Slack
	require.Error(t, s.Send(context.Background(), "t", "x"))
}
