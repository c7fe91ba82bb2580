package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentUploadedEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	original := documentUploadedEvent{
		Header: events.EventHeader{
			WorkflowID: "wf-1",
			UserID:     "user-1",
			TenantID:   "tenant-1",
			EventID:    "event-1",
			Timestamp:  time.Now().UTC().Truncate(time.Second),
		},
		DocumentKey: "reports/weekly.docx",
	}

	payload, marshalErr := json.Marshal(original)
	require.NoError(t, marshalErr)

	var decoded documentUploadedEvent

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, original.DocumentKey, decoded.DocumentKey)
	assert.Equal(t, original.Header.WorkflowID, decoded.Header.WorkflowID)
	assert.Equal(t, original.Header.TenantID, decoded.Header.TenantID)
}

func TestNewStreamConfig(t *testing.T) {
	t.Parallel()

	streamCfg := newStreamConfig("DOCS", "docs.uploaded")

	assert.Equal(t, "DOCS", streamCfg.Name)
	assert.Equal(t, []string{"docs.uploaded"}, streamCfg.Subjects)
	assert.Equal(t, jetstream.WorkQueuePolicy, streamCfg.Retention)
}

func TestNewConsumerConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		NATS: NATSConfig{
			URL:                  "",
			DocStreamName:        "DOCS",
			DocConsumerName:      "doc-workers",
			DocUploadedSubject:   "docs.uploaded",
			DocObjectStoreBucket: "",
			PDFStreamName:        "",
			PDFCreatedSubject:    "",
			PDFObjectStoreBucket: "",
		},
		Paths:      PathsConfig{BaseLogsDir: ""},
		Conversion: ConversionConfig{TimeoutSeconds: 0, ProcessNames: nil},
	}

	consumerCfg := newConsumerConfig(cfg)

	assert.Equal(t, "doc-workers", consumerCfg.Durable)
	assert.Equal(t, "docs.uploaded", consumerCfg.FilterSubject)
	assert.Equal(t, jetstream.AckExplicitPolicy, consumerCfg.AckPolicy)
}
