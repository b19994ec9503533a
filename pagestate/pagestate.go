// Package pagestate classifies what kind of page the automated session is
// looking at and proposes a remedial action per state.
//
// Classification is a pure function of the current page snapshot — URL,
// visible text, and a few DOM probes. States are checked in a fixed
// severity-ordered sequence so a suspended account is never misread as a
// soft rate limit. The classifier only diagnoses; enacting the suggested
// action is entirely the caller's business.
package pagestate

import (
	"context"
	"strings"

	"github.com/driftlab/drift/browser"
)

// State tags.
const (
	LoginRequired          = "login_required"
	TwoFactorRequired      = "two_factor_required"
	Challenge              = "challenge"
	RateLimited            = "rate_limited"
	Suspended              = "suspended"
	Banned                 = "banned"
	VerificationRequired   = "verification_required"
	PasswordResetRequired  = "password_reset_required"
	CredentialsIncorrect   = "credentials_incorrect"
	ContentReady           = "content_ready"
	Unknown                = "unknown"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeveritySuccess  = "success"
)

// Action tags consumed by the external workflow driver.
const (
	ActionMarkSuspended    = "mark_suspended"
	ActionMarkBanned       = "mark_banned"
	ActionVerifyAccount    = "verify_account"
	ActionResetPassword    = "reset_password"
	ActionDismissChallenge = "dismiss_challenge"
	ActionEnterCode        = "enter_code"
	ActionWaitAndRetry     = "wait_and_retry"
	ActionFixCredentials   = "fix_credentials"
	ActionLogin            = "login"
	ActionContinue         = "continue"
	ActionInvestigate      = "investigate"
)

// Classification is the result of one observation. It is transient: callers
// keep at most the latest value per session.
type Classification struct {
	State    string `json:"state"`
	Evidence string `json:"evidence"` // matched URL substring or text snippet
	Severity string `json:"severity"`
	Action   string `json:"action"`
}

// Classify inspects the page and returns its state. It never mutates
// session or account state and carries nothing across calls.
func Classify(ctx context.Context, page browser.Session) Classification {
	pageURL := strings.ToLower(page.CurrentURL())
	text, err := page.VisibleText(ctx)
	if err != nil {
		// A page that cannot even render text is unclassifiable, not fatal.
		return Classification{State: Unknown, Evidence: "visible text unavailable",
			Severity: SeverityWarning, Action: ActionInvestigate}
	}
	text = strings.ToLower(text)

	// Critical account states first.
	if ev, ok := matchAny(pageURL, text, suspendedPatterns); ok {
		return Classification{State: Suspended, Evidence: ev,
			Severity: SeverityCritical, Action: ActionMarkSuspended}
	}
	if ev, ok := matchAny(pageURL, text, bannedPatterns); ok {
		return Classification{State: Banned, Evidence: ev,
			Severity: SeverityCritical, Action: ActionMarkBanned}
	}
	if ev, ok := matchAny(pageURL, text, verificationPatterns); ok {
		return Classification{State: VerificationRequired, Evidence: ev,
			Severity: SeverityWarning, Action: ActionVerifyAccount}
	}
	if ev, ok := matchAny(pageURL, text, passwordResetPatterns); ok {
		return Classification{State: PasswordResetRequired, Evidence: ev,
			Severity: SeverityWarning, Action: ActionResetPassword}
	}
	if ev, ok := matchAny(pageURL, text, challengePatterns); ok {
		return Classification{State: Challenge, Evidence: ev,
			Severity: SeverityWarning, Action: ActionDismissChallenge}
	}
	if ev, ok := detectTwoFactor(ctx, page, pageURL); ok {
		return Classification{State: TwoFactorRequired, Evidence: ev,
			Severity: SeverityWarning, Action: ActionEnterCode}
	}
	if ev, ok := matchText(text, rateLimitPatterns); ok {
		return Classification{State: RateLimited, Evidence: ev,
			Severity: SeverityWarning, Action: ActionWaitAndRetry}
	}

	onLogin := matchURL(pageURL, loginURLPatterns)
	if onLogin {
		if ev, ok := matchText(text, wrongPasswordPatterns); ok {
			return Classification{State: CredentialsIncorrect, Evidence: ev,
				Severity: SeverityWarning, Action: ActionFixCredentials}
		}
		return Classification{State: LoginRequired, Evidence: "login url",
			Severity: SeverityInfo, Action: ActionLogin}
	}

	if ev, ok := detectContentReady(ctx, page, pageURL); ok {
		return Classification{State: ContentReady, Evidence: ev,
			Severity: SeveritySuccess, Action: ActionContinue}
	}

	return Classification{State: Unknown, Evidence: firstWords(text, 12),
		Severity: SeverityWarning, Action: ActionInvestigate}
}

// detectTwoFactor checks the URL and then probes for a one-time-code entry
// field. DOM probe failures count as "not present".
func detectTwoFactor(ctx context.Context, page browser.Session, pageURL string) (string, bool) {
	for _, p := range twoFactorURLPatterns {
		if strings.Contains(pageURL, p) {
			return p, true
		}
	}
	for _, probe := range codeFieldProbes {
		if _, err := page.QueryOne(ctx, probe); err == nil {
			return probe, true
		}
	}
	return "", false
}

// detectContentReady requires the absence of bad-state URLs plus either a
// positive navigation landmark or the canonical home/landing URL.
func detectContentReady(ctx context.Context, page browser.Session, pageURL string) (string, bool) {
	for _, p := range badStateURLPatterns {
		if strings.Contains(pageURL, p) {
			return "", false
		}
	}
	for _, probe := range navLandmarkProbes {
		if _, err := page.QueryOne(ctx, probe); err == nil {
			return probe, true
		}
	}
	if isHomeURL(pageURL) {
		return "home url", true
	}
	return "", false
}

// isHomeURL reports whether the URL is the canonical home/landing form.
func isHomeURL(pageURL string) bool {
	trimmed := pageURL
	for _, scheme := range []string{"https://", "http://"} {
		trimmed = strings.TrimPrefix(trimmed, scheme)
	}
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		path := trimmed[idx:]
		return path == "/" || path == ""
	}
	return true
}

func matchAny(pageURL, text string, p patternSet) (string, bool) {
	for _, u := range p.urls {
		if strings.Contains(pageURL, u) {
			return u, true
		}
	}
	return matchText(text, p.texts)
}

func matchURL(pageURL string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(pageURL, p) {
			return true
		}
	}
	return false
}

func matchText(text string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
