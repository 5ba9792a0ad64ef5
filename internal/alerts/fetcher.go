package alerts

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrMarkerLoop stops a fetch whose source hands back a marker already
// requested in the same cycle
var ErrMarkerLoop = errors.New("alert source repeated a continuation marker")

// Fetcher drains every page of a cluster's alert feed for one cycle
type Fetcher struct {
	source Source
}

func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// Alerts yields the alerts of each page in order. A page error is yielded once
// with a zero RawAlert and ends the sequence. Alerts yielded before the error
// have already been handed to the caller.
func (f *Fetcher) Alerts(ctx context.Context) iter.Seq2[RawAlert, error] {
	return func(yield func(RawAlert, error) bool) {
		marker := ""
		seen := map[string]struct{}{marker: {}}
		for pageNum := 1; ; pageNum++ {
			page, err := f.source.FetchAlertPage(ctx, marker)
			if err != nil {
				yield(RawAlert{}, fmt.Errorf("failed to fetch alert page %d: %w", pageNum, err))
				return
			}

			for _, raw := range page.Alerts {
				if !yield(raw, nil) {
					return
				}
			}

			if page.NextMarker == "" {
				return
			}
			if _, ok := seen[page.NextMarker]; ok {
				yield(RawAlert{}, fmt.Errorf("%w: %q after page %d", ErrMarkerLoop, page.NextMarker, pageNum))
				return
			}
			marker = page.NextMarker
			seen[marker] = struct{}{}
		}
	}
}
