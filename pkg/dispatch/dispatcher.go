package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/log"
)

// seqEarlyStopThreshold is the "good enough" result count in sequential
// mode: once a provider succeeds with at least this many results, the
// remaining providers are not tried.
const seqEarlyStopThreshold = 5

// ErrNoProviders is returned when the handle set to dispatch is empty.
// An empty set is a configuration failure, not something to absorb
// silently.
var ErrNoProviders = errors.New("no providers to dispatch")

// Handle pairs a provider instance with its dispatch configuration.
type Handle struct {
	Spec     core.ProviderSpec
	Provider core.Provider
}

// Dispatcher executes provider calls for one orchestration run, either as
// a parallel fan-out or sequentially in priority order. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	logger *log.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		logger: log.ForService("dispatch"),
	}
}

// Run invokes the given providers for the request and returns one
// ProviderResponse per invoked provider, in invocation order. Ordering
// reflects invocation, not quality. Provider failures are recorded in the
// responses, never returned as errors.
//
// In parallel mode all providers run concurrently and Run waits for every
// one of them; a slow or failing provider does not cancel its siblings.
// In sequential mode providers run one at a time in ascending priority
// order, stopping early once one succeeds with enough results.
func (d *Dispatcher) Run(ctx context.Context, req *core.SearchRequest, handles []Handle) ([]core.ProviderResponse, error) {
	if len(handles) == 0 {
		return nil, ErrNoProviders
	}

	if req.Sequential() {
		return d.runSequential(ctx, req, handles), nil
	}
	return d.runParallel(ctx, req, handles), nil
}

func (d *Dispatcher) runParallel(ctx context.Context, req *core.SearchRequest, handles []Handle) []core.ProviderResponse {
	d.logger.Debugf("fanning out to %d providers", len(handles))

	responses := make([]core.ProviderResponse, len(handles))
	var wg sync.WaitGroup

	for i, handle := range handles {
		wg.Add(1)
		go func(i int, handle Handle) {
			defer wg.Done()
			responses[i] = d.call(ctx, req, handle)
		}(i, handle)
	}

	wg.Wait()
	return responses
}

func (d *Dispatcher) runSequential(ctx context.Context, req *core.SearchRequest, handles []Handle) []core.ProviderResponse {
	ordered := make([]Handle, len(handles))
	copy(ordered, handles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Spec.Priority < ordered[j].Spec.Priority
	})

	var responses []core.ProviderResponse
	for _, handle := range ordered {
		resp := d.call(ctx, req, handle)
		responses = append(responses, resp)

		if resp.Success && len(resp.Results) >= seqEarlyStopThreshold {
			d.logger.Debugf("provider %s returned %d results, stopping early",
				resp.Provider, len(resp.Results))
			break
		}
	}
	return responses
}

// call executes a single provider with its timeout budget and always
// produces a response: failures of any kind (timeout, transport error,
// malformed payload) become data on the ProviderResponse. Elapsed time is
// recorded on success and failure alike. A provider that ignores its
// context is abandoned when the budget elapses; its goroutine may linger
// until the underlying transport gives up, but it can no longer influence
// this run.
func (d *Dispatcher) call(ctx context.Context, req *core.SearchRequest, handle Handle) core.ProviderResponse {
	timeout := handle.Spec.Timeout
	if timeout <= 0 {
		timeout = core.DefaultProviderTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := handle.Spec.Name
	start := time.Now()

	type outcome struct {
		page *core.ResultPage
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		page, err := handle.Provider.Search(callCtx, req)
		done <- outcome{page: page, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start).Seconds()
		if out.err != nil {
			d.logger.Warnf("provider %s failed after %.2fs: %v", name, elapsed, out.err)
			return failureResponse(name, elapsed, out.err.Error())
		}
		page := out.page
		if page == nil {
			page = &core.ResultPage{}
		}
		totalCount := page.TotalCount
		if totalCount < len(page.Results) {
			totalCount = len(page.Results)
		}
		d.logger.Debugf("provider %s returned %d results in %.2fs", name, len(page.Results), elapsed)
		return core.ProviderResponse{
			Provider:   name,
			Success:    true,
			Results:    page.Results,
			TotalCount: totalCount,
			SearchTime: elapsed,
			Metadata:   page.Metadata,
		}

	case <-callCtx.Done():
		elapsed := time.Since(start).Seconds()
		msg := fmt.Sprintf("timed out after %v", timeout)
		if ctx.Err() != nil {
			msg = ctx.Err().Error()
		}
		d.logger.Warnf("provider %s %s", name, msg)
		return failureResponse(name, elapsed, msg)
	}
}

func failureResponse(name string, elapsed float64, message string) core.ProviderResponse {
	return core.ProviderResponse{
		Provider:   name,
		Success:    false,
		SearchTime: elapsed,
		Error:      message,
	}
}
