package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	auth "github.com/mshaik15/Backend-firebase-auth"
)

// Source is the read surface the exporter needs. *auth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() auth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   auth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{auth.MetricLoginSuccess, "authd_login_success_total", "Successful logins."},
	{auth.MetricLoginFailure, "authd_login_failure_total", "Failed logins."},
	{auth.MetricLoginRateLimited, "authd_login_rate_limited_total", "Rate-limited login attempts."},
	{auth.MetricRegisterSuccess, "authd_register_success_total", "Successful registrations."},
	{auth.MetricRegisterDuplicate, "authd_register_duplicate_total", "Registrations rejected as duplicate."},
	{auth.MetricRefreshSuccess, "authd_refresh_success_total", "Successful refresh rotations."},
	{auth.MetricRefreshFailure, "authd_refresh_failure_total", "Failed refresh rotations."},
	{auth.MetricReplayDetected, "authd_replay_detected_total", "Refresh replays that tore a session down."},
	{auth.MetricVerifySuccess, "authd_verify_success_total", "Access tokens verified."},
	{auth.MetricVerifyFailure, "authd_verify_failure_total", "Access tokens rejected."},
	{auth.MetricTokenRevokedRejected, "authd_token_revoked_rejected_total", "Valid tokens rejected by the revocation floor."},
	{auth.MetricRateLimitHit, "authd_rate_limit_hit_total", "Requests denied by a rate budget."},
	{auth.MetricSessionCreated, "authd_session_created_total", "Sessions created."},
	{auth.MetricLogout, "authd_logout_total", "Single-session logouts."},
	{auth.MetricRevokeAll, "authd_revoke_all_total", "Mass revocations."},
	{auth.MetricAccountDeleted, "authd_account_deleted_total", "Accounts deleted."},
	{auth.MetricPasswordResetRequest, "authd_password_reset_request_total", "Password reset requests."},
	{auth.MetricEmailVerificationRequest, "authd_email_verification_request_total", "Email verification requests."},
	{auth.MetricProviderUnavailable, "authd_provider_unavailable_total", "Identity provider failures."},
	{auth.MetricStoreUnavailable, "authd_store_unavailable_total", "Session store failures."},
}

const (
	latencyName = "authd_verify_latency_seconds"
	latencyHelp = "Access token verification latency."
)

// Bucket bounds mirror the engine's histogram layout.
var bucketBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Exporter renders metrics snapshots. The zero value is unusable; build one
// with [NewExporter] or [NewExporterFromSource].
type Exporter struct {
	source Source
}

// NewExporter creates an [Exporter] reading from the engine.
func NewExporter(engine *auth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an [Exporter] over a custom [Source].
func NewExporterFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics as a scrape endpoint.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render produces the text exposition body. Empty when metrics are off.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}
	if buckets, ok := snapshot.Histograms[auth.MetricVerifyLatency]; ok {
		writeHistogram(&b, latencyName, latencyHelp, cumulative(buckets))
	}
	writeCounter(&b, "authd_audit_dropped_total", "Audit events dropped under backpressure.", dropped)

	return b.String()
}

// cumulative converts the engine's per-bucket counts into the running sums
// Prometheus histograms expect, padding short snapshots with zeros.
func cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(bucketBounds))
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP " + name + " " + help + "\n")
	b.WriteString("# TYPE " + name + " counter\n")
	b.WriteString(name + " " + strconv.FormatUint(value, 10) + "\n")
}

func writeHistogram(b *strings.Builder, name, help string, cum []uint64) {
	b.WriteString("# HELP " + name + " " + help + "\n")
	b.WriteString("# TYPE " + name + " histogram\n")
	for i, le := range bucketBounds {
		b.WriteString(name + `_bucket{le="` + le + `"} ` + strconv.FormatUint(cum[i], 10) + "\n")
	}
	count := cum[len(cum)-1]
	b.WriteString(name + "_count " + strconv.FormatUint(count, 10) + "\n")
	// The engine tracks buckets only, so the sum is not recoverable.
	b.WriteString(name + "_sum 0\n")
}
