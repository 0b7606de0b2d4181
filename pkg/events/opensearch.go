package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchPublisher indexes each event into a daily index
// "<prefix>-YYYY.MM.DD" for dashboards and ad-hoc search.
type OpenSearchPublisher struct {
	client *opensearch.Client
	prefix string
}

func NewOpenSearchPublisher(client *opensearch.Client, indexPrefix string) *OpenSearchPublisher {
	if indexPrefix == "" {
		indexPrefix = "notification-events"
	}
	return &OpenSearchPublisher{client: client, prefix: indexPrefix}
}

func (p *OpenSearchPublisher) Publish(ctx context.Context, name string, payload Payload) error {
	ev := newEvent(name, payload)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", name, err)
	}

	req := opensearchapi.IndexRequest{
		Index: fmt.Sprintf("%s-%s", p.prefix, ev.OccurredAt.Format("2006.01.02")),
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, p.client)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Join(ErrPublishFailed, fmt.Errorf("opensearch status %d: %s", resp.StatusCode, msg))
	}
	return nil
}
