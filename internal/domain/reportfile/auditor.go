package reportfile

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxIssuedURLLen bounds the URL column; presigned URLs carry long
// signatures and only the head is useful for audit.
const maxIssuedURLLen = 1000

var auditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reportstore_audit_log_failures_total",
	Help: "Access-log writes that failed and were dropped",
})

// Auditor records every presign issuance. It never fails the caller:
// a failed write is counted and logged, and the access request
// proceeds. Observability must not block the critical path.
type Auditor struct {
	repo Repository
}

func NewAuditor(repo Repository) *Auditor {
	return &Auditor{repo: repo}
}

func (a *Auditor) Record(ctx context.Context, entry *AccessLogEntry) {
	if len(entry.IssuedURL) > maxIssuedURLLen {
		entry.IssuedURL = entry.IssuedURL[:maxIssuedURLLen]
	}

	if err := a.repo.AppendAccessLog(ctx, entry); err != nil {
		auditFailuresTotal.Inc()
		log.Printf("audit_log_failure file_id=%s access_type=%s err=%v",
			entry.FileID, entry.AccessType, err)
	}
}
