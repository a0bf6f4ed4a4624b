package errors

import (
	"os"
	"sync"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"

	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// Setting DEBUG disables every reporter.
const debugMode = "DEBUG"

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

// Reporter ships an error to an external alerting channel.
type Reporter interface {
	Report(error)
}

// Register adds r to the reporters receiving "AndReport" errors.
func Register(r Reporter) {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
}

func resetReporters() {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = nil
}

func report(err error) {
	if err == nil || os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	rs := make([]Reporter, len(reporters))
	copy(rs, reporters)
	reportersMu.RUnlock()
	for _, r := range rs {
		r.Report(err)
	}
}

type sentryReporter struct{}

func (s *sentryReporter) Report(err error) {
	sentry.CaptureException(err)
}

// NewSentryReporter registers a Sentry reporter; an empty DSN is a no-op.
func NewSentryReporter(sentryDSN string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     sentryDSN,
		CaCerts: rootCAs,
	}); err != nil {
		return Wrap(err, "init sentry")
	}
	Register(&sentryReporter{})
	log.Info("sentry error reporter initialized.")
	return nil
}
