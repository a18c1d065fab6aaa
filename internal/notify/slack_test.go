package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsanSh21/clickhouse-metabase/internal/pipeline"
)

func report() *pipeline.Report {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &pipeline.Report{
		RunID:       "run-1",
		StartedAt:   start,
		FinishedAt:  start.Add(1500 * time.Millisecond),
		Extracted:   map[string]int{"transactions": 2, "cities": 1},
		Transformed: 2,
		Loaded:      2,
	}
}

func TestMessageSuccess(t *testing.T) {
	msg := Message(report(), "#fraud")

	assert.Equal(t, "#fraud", msg.Channel)
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "good", att.Color)
	assert.Equal(t, "fraud-etl run succeeded", att.Title)

	values := map[string]string{}
	for _, f := range att.Fields {
		values[f.Title] = f.Value
	}
	assert.Equal(t, "cities=1 transactions=2", values["Extracted"])
	assert.Equal(t, "2", values["Loaded"])
	assert.Equal(t, "1.5s", values["Duration"])
}

func TestMessageFailure(t *testing.T) {
	r := report()
	r.FailedStage = "load"
	r.ErrorKind = "LoadFailed"
	r.Error = "load stage failed (LoadFailed): connection refused"

	att := Message(r, "").Attachments[0]
	assert.Equal(t, "danger", att.Color)
	assert.Equal(t, "fraud-etl run failed in load stage", att.Title)
}

func TestNotifyPostsWebhook(t *testing.T) {
	var got slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewSlack(srv.URL, "#fraud").Notify(context.Background(), report()))
	assert.Equal(t, "fraud-etl run succeeded", got.Text)
}

func TestNotifyReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, NewSlack(srv.URL, "").Notify(context.Background(), report()))
}
