package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/pwaforge/manifestd"
	"github.com/pwaforge/manifestd/internal/domain"
)

var tracer = otel.Tracer("probe")

const (
	swReadyScript = `navigator.serviceWorker.ready.then((reg) => reg.active.scriptURL)`
	swScopeScript = `navigator.serviceWorker.getRegistration().then((reg) => reg.scope)`
	swPushScript  = `navigator.serviceWorker.getRegistration()
		.then((reg) => reg.pushManager.getSubscription())
		.then((sub) => JSON.stringify(sub))`
)

// ServiceWorkerProbe inspects a live page for service-worker capabilities
// by driving one isolated headless browser session per call. Sessions are
// never pooled; page and browser are torn down on every exit path.
type ServiceWorkerProbe struct {
	timeout time.Duration
}

// NewServiceWorkerProbe returns a probe whose readiness and capability
// reads are bounded by timeout. Navigation is bounded only by the
// browser's own defaults.
func NewServiceWorkerProbe(timeout time.Duration) *ServiceWorkerProbe {
	return &ServiceWorkerProbe{timeout: timeout}
}

// Probe navigates to url and reports on the page's service worker. The
// second return value is false when no service worker became ready within
// the configured timeout; that outcome is not an error. Any other failure
// returns a domain.ProbeError.
func (p *ServiceWorkerProbe) Probe(ctx context.Context, url string) (*manifestd.ServiceWorkerReport, bool, error) {

	ctx, span := tracer.Start(ctx, "Probe.Service.Probe")
	defer span.End()

	// Once started, a probe runs to completion, timeout or failure; caller
	// cancellation does not propagate into the browser session.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	defer func() {
		_ = chromedp.Cancel(browserCtx)
	}()

	interceptRequests(browserCtx)

	err := chromedp.Run(browserCtx,
		network.Enable(),
		fetch.Enable(),
		navigateDOMContentLoaded(url),
	)
	if err != nil {
		span.RecordError(err)
		return nil, false, domain.ProbeError{URL: url, Err: errors.Wrap(err, "navigation failed")}
	}

	// Readiness wait. The registration machinery running past the deadline
	// means no service worker, which is a result, not an error.
	var scriptURL string
	if err := p.evaluate(browserCtx, swReadyScript, &scriptURL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, domain.ProbeError{URL: url, Err: errors.Wrap(err, "service worker readiness check failed")}
	}

	var scope string
	if err := p.evaluate(browserCtx, swScopeScript, &scope); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, domain.ProbeError{URL: url, Err: errors.Wrap(err, "scope read failed")}
	}

	var pushJSON string
	if err := p.evaluate(browserCtx, swPushScript, &pushJSON); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, domain.ProbeError{URL: url, Err: errors.Wrap(err, "push subscription read failed")}
	}

	// Record requests during a second load to surface runtime caching done
	// by the now-registered worker.
	ledger := newRequestLedger()
	ledger.observe(browserCtx)

	if err := chromedp.Run(browserCtx, reloadDOMContentLoaded()); err != nil {
		span.RecordError(err)
		return nil, false, domain.ProbeError{URL: url, Err: errors.Wrap(err, "reload failed")}
	}

	report := &manifestd.ServiceWorkerReport{
		HasSW:   scriptURL,
		Scope:   scope,
		PushReg: json.RawMessage(pushJSON),
		Cache:   ledger.checks(),
	}

	return report, true, nil
}

// evaluate runs a promise-returning script under the probe's timeout.
func (p *ServiceWorkerProbe) evaluate(ctx context.Context, script string, out any) error {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Evaluate(script, out, awaitPromise))
}

func awaitPromise(params *runtime.EvaluateParams) *runtime.EvaluateParams {
	return params.WithAwaitPromise(true)
}

// interceptAllowed reports whether a resource type passes the probe's
// allow-list. Only document, script-like and plain resources are fetched;
// everything else is aborted to keep capability detection cheap.
func interceptAllowed(t network.ResourceType) bool {
	switch t {
	case network.ResourceTypeDocument, network.ResourceTypeScript, network.ResourceTypeOther:
		return true
	}
	return false
}

// interceptRequests installs the fetch-domain hook that enforces the
// resource allow-list for the lifetime of the session.
func interceptRequests(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(ctx)
			exec := cdp.WithExecutor(ctx, c.Target)
			if interceptAllowed(paused.ResourceType) {
				_ = fetch.ContinueRequest(paused.RequestID).Do(exec)
			} else {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonAborted).Do(exec)
			}
		}()
	})
}

// navigateDOMContentLoaded navigates and returns once DOM content is
// loaded, a deliberately cheaper readiness signal than full load.
func navigateDOMContentLoaded(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ready := domContentSignal(ctx)
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		// Net-level failures (DNS, connection refused) come back through
		// errorText with a nil err and must not fall through to the error
		// page Chrome commits in their place.
		if err := navigationError(errorText); err != nil {
			return err
		}
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func navigationError(errorText string) error {
	if errorText == "" {
		return nil
	}
	return fmt.Errorf("page load error %s", errorText)
}

func reloadDOMContentLoaded() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ready := domContentSignal(ctx)
		if err := page.Reload().Do(ctx); err != nil {
			return err
		}
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func domContentSignal(ctx context.Context) <-chan struct{} {
	ready := make(chan struct{}, 1)
	chromedp.ListenTarget(ctx, func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	return ready
}

// requestLedger records network requests keyed by URL, last request to a
// URL winning, and pairs them with any response observed.
type requestLedger struct {
	mu       sync.Mutex
	order    []string
	outcomes map[string]*requestOutcome
}

type requestOutcome struct {
	responded bool
	fromSW    bool
	url       string
}

func newRequestLedger() *requestLedger {
	return &requestLedger{outcomes: map[string]*requestOutcome{}}
}

func (l *requestLedger) observe(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			l.request(ev.Request.URL)
		case *network.EventResponseReceived:
			l.response(ev.Response.URL, ev.Response.FromServiceWorker)
		}
	})
}

func (l *requestLedger) request(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.outcomes[url]; !ok {
		l.order = append(l.order, url)
	}
	// A repeated request to the same URL resets its outcome.
	l.outcomes[url] = &requestOutcome{}
}

func (l *requestLedger) response(url string, fromSW bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	outcome, ok := l.outcomes[url]
	if !ok {
		return
	}
	outcome.responded = true
	outcome.fromSW = fromSW
	outcome.url = url
}

// checks returns one entry per unique request URL. Requests that never
// produced a response carry nil fields.
func (l *requestLedger) checks() []manifestd.RequestCheck {
	l.mu.Lock()
	defer l.mu.Unlock()

	checks := []manifestd.RequestCheck{}
	for _, url := range l.order {
		outcome := l.outcomes[url]
		if !outcome.responded {
			checks = append(checks, manifestd.RequestCheck{})
			continue
		}
		fromSW := outcome.fromSW
		responseURL := outcome.url
		checks = append(checks, manifestd.RequestCheck{
			FromServiceWorker: &fromSW,
			RequestURL:        &responseURL,
		})
	}
	return checks
}
