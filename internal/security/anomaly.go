package security

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

// Policy holds the thresholds the anomaly checks compare against.
type Policy struct {
	MaxAmount      int64
	AllowedDomains []string
	MaxSkew        time.Duration
}

// CheckResult is the outcome of a single anomaly check.
type CheckResult struct {
	Check        string      `json:"check"`
	Passed       bool        `json:"passed"`
	CurrentValue interface{} `json:"current_value"`
	Threshold    interface{} `json:"threshold"`
	Message      string      `json:"message"`
}

type AnomalyReport struct {
	CheckedAt    time.Time      `json:"checked_at"`
	Results      []*CheckResult `json:"results"`
	Anomalous    bool           `json:"anomalous"`
	FailedChecks []string       `json:"failed_checks,omitempty"`
}

// Findings returns the messages of failed checks in evaluation order.
func (r *AnomalyReport) Findings() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res.Message)
		}
	}
	return out
}

type anomalyCheck struct {
	name  string
	check func(p Policy, tx *domain.ValidatedTransaction, rc domain.RequestContext, now time.Time) *CheckResult
}

// anomalyChecks run in order; adding a heuristic means appending here.
var anomalyChecks = []anomalyCheck{
	{name: "amount_ceiling", check: checkAmountCeiling},
	{name: "return_url_domain", check: checkReturnURLDomain},
	{name: "timestamp_skew", check: checkTimestampSkew},
	{name: "client_ip_mismatch", check: checkClientIP},
}

// DetectAnomalies runs every check against tx. It never rejects anything by
// itself; callers decide what an anomalous report means.
func DetectAnomalies(p Policy, tx *domain.ValidatedTransaction, rc domain.RequestContext, now time.Time) *AnomalyReport {
	report := &AnomalyReport{
		CheckedAt: now,
		Results:   make([]*CheckResult, 0, len(anomalyChecks)),
	}
	for _, c := range anomalyChecks {
		res := c.check(p, tx, rc, now)
		res.Check = c.name
		report.Results = append(report.Results, res)
		if !res.Passed {
			report.Anomalous = true
			report.FailedChecks = append(report.FailedChecks, c.name)
		}
	}
	return report
}

func checkAmountCeiling(p Policy, tx *domain.ValidatedTransaction, _ domain.RequestContext, _ time.Time) *CheckResult {
	res := &CheckResult{Passed: true, CurrentValue: tx.Amount, Threshold: p.MaxAmount}
	if p.MaxAmount > 0 && tx.Amount > p.MaxAmount {
		res.Passed = false
		res.Message = fmt.Sprintf("amount %d exceeds ceiling %d", tx.Amount, p.MaxAmount)
	}
	return res
}

func checkReturnURLDomain(p Policy, tx *domain.ValidatedTransaction, _ domain.RequestContext, _ time.Time) *CheckResult {
	res := &CheckResult{Passed: true, Threshold: p.AllowedDomains}
	if len(p.AllowedDomains) == 0 {
		return res
	}
	u, err := url.Parse(tx.ReturnURL)
	if err != nil || u.Hostname() == "" {
		res.Passed = false
		res.CurrentValue = tx.ReturnURL
		res.Message = "return url is not a valid absolute url"
		return res
	}
	host := strings.ToLower(u.Hostname())
	res.CurrentValue = host
	if !HostAllowed(host, p.AllowedDomains) {
		res.Passed = false
		res.Message = fmt.Sprintf("return url host %q is not allowed", host)
	}
	return res
}

func checkTimestampSkew(p Policy, tx *domain.ValidatedTransaction, _ domain.RequestContext, now time.Time) *CheckResult {
	skew := now.Sub(time.UnixMilli(tx.Timestamp))
	if skew < 0 {
		skew = -skew
	}
	res := &CheckResult{Passed: true, CurrentValue: skew.String(), Threshold: p.MaxSkew.String()}
	if skew > p.MaxSkew {
		res.Passed = false
		res.Message = fmt.Sprintf("timestamp is %s away from server time", skew.Round(time.Second))
	}
	return res
}

func checkClientIP(_ Policy, tx *domain.ValidatedTransaction, rc domain.RequestContext, _ time.Time) *CheckResult {
	res := &CheckResult{Passed: true, CurrentValue: rc.ClientIP, Threshold: tx.ClientIP}
	if rc.ClientIP != "" && tx.ClientIP != rc.ClientIP {
		res.Passed = false
		res.Message = fmt.Sprintf("client ip %q does not match signed ip %q", rc.ClientIP, tx.ClientIP)
	}
	return res
}

// HostAllowed matches host against domains exactly or as a subdomain.
func HostAllowed(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
