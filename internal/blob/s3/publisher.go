package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// multipartThreshold is the payload size at which uploads switch from a
// single PutObject to the multipart path. Long-running deployments can
// accumulate archives well past it.
const multipartThreshold = 8 * 1024 * 1024

// Publisher uploads cycle reports and closed-position archives to object
// storage. Uploads are best-effort from the engine's point of view: a failed
// upload never blocks or rolls back a cycle.
type Publisher struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewPublisher creates a Publisher. audit may be nil.
func NewPublisher(writer domain.BlobWriter, audit domain.AuditStore) *Publisher {
	return &Publisher{writer: writer, audit: audit}
}

// PublishReport uploads a markdown cycle report keyed by cycle start time,
// e.g. reports/2026-08-28/cycle-150405.md.
func (p *Publisher) PublishReport(ctx context.Context, startedAt time.Time, markdown []byte) (string, error) {
	path := fmt.Sprintf("reports/%s/cycle-%s.md",
		startedAt.UTC().Format("2006-01-02"), startedAt.UTC().Format("150405"))

	if err := p.upload(ctx, path, markdown, "text/markdown"); err != nil {
		return "", fmt.Errorf("s3blob: publish report: %w", err)
	}

	p.log(ctx, "report_published", map[string]any{
		"path":  path,
		"bytes": len(markdown),
	})
	return path, nil
}

// ArchiveClosed appends the cycle's closed positions to a month-partitioned
// JSONL archive, e.g. archive/closed/2026-08.jsonl. The object is keyed per
// cycle so concurrent writers never clobber each other.
func (p *Publisher) ArchiveClosed(ctx context.Context, closed []domain.Position, now time.Time) (string, error) {
	if len(closed) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(closed)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive closed marshal: %w", err)
	}

	path := fmt.Sprintf("archive/closed/%s/%s.jsonl",
		now.UTC().Format("2006-01"), now.UTC().Format("20060102T150405"))
	if err := p.upload(ctx, path, buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive closed upload: %w", err)
	}

	p.log(ctx, "closed_positions_archived", map[string]any{
		"path":  path,
		"count": len(closed),
	})
	return path, nil
}

// upload routes a payload to the right writer path: single-shot puts for the
// common small artifacts, multipart once the payload reaches the threshold.
func (p *Publisher) upload(ctx context.Context, path string, buf []byte, contentType string) error {
	if int64(len(buf)) >= multipartThreshold {
		return p.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	}
	return p.writer.Put(ctx, path, bytes.NewReader(buf), contentType)
}

func (p *Publisher) log(ctx context.Context, event string, detail map[string]any) {
	if p.audit == nil {
		return
	}
	_ = p.audit.Log(ctx, event, detail)
}

// marshalJSONL serialises records as newline-delimited JSON, one compact line
// per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
