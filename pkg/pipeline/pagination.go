package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/errs"
)

// maxPaginationPages bounds page-number pagination so a misbehaving vendor
// endpoint cannot produce a runaway scan (spec.md §4.1: "total pages
// fetched is bounded").
const maxPaginationPages = 1000

// GetAllPages implements spec.md §4.1's page-number pagination combinator.
// Each page is fetched as a plain JSON array of T; pagination stops when a
// page returns fewer than limit items, or when the response carries an
// "x-has-more: false" header. Any page failure is returned verbatim.
func GetAllPages[T any](ctx context.Context, p *Pipeline, endpoint, pageParam, limitParam string, limit int, extraHeaders map[string]string) *envelope.APIResponse[[]T] {
	if pageParam == "" {
		pageParam = "page"
	}
	if limitParam == "" {
		limitParam = "limit"
	}
	if limit <= 0 {
		limit = 100
	}

	var all []T
	for page := 1; page <= maxPaginationPages; page++ {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		pageEndpoint := fmt.Sprintf("%s%s%s=%d&%s=%d", endpoint, sep, pageParam, page, limitParam, limit)

		resp := MakeRequest[[]T](ctx, p, http.MethodGet, pageEndpoint, nil, extraHeaders)
		if !resp.Success {
			return envelope.Fail[[]T](resp.Error, resp.StatusCode)
		}

		all = append(all, resp.Data...)

		hasMoreHeader, hasMoreSet := resp.Headers["x-has-more"]
		if len(resp.Data) < limit || (hasMoreSet && hasMoreHeader == "false") {
			break
		}
	}
	return envelope.Ok[[]T](all, 200, nil)
}

// CursorPaginationOptions configures CollectCursorPaginated, mirroring
// spec.md §4.1's collectCursorPaginated({fetchPage, extractItems,
// extractCursor, initialCursor, maxPages, onPage}).
type CursorPaginationOptions[T any, C comparable] struct {
	FetchPage     func(ctx context.Context, cursor C) (*envelope.Raw, error)
	ExtractItems  func(data any) []T
	ExtractCursor func(data any) (C, bool) // ok=false (or zero cursor) ends pagination
	InitialCursor C
	MaxPages      int
	OnPage        func(page int, items []T)
}

// CollectCursorPaginated implements spec.md §4.1's cursor-style pagination
// combinator. It stops when ExtractCursor reports no further cursor, a
// zero-value cursor, or MaxPages (default 50) is reached.
func CollectCursorPaginated[T any, C comparable](ctx context.Context, opts CursorPaginationOptions[T, C]) *envelope.APIResponse[[]T] {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	var all []T
	var zero C
	cursor := opts.InitialCursor

	for page := 0; page < maxPages; page++ {
		resp, err := opts.FetchPage(ctx, cursor)
		if err != nil {
			return envelope.FailTransport[[]T](errs.GetErrorMessage(err))
		}
		if !resp.Success {
			return envelope.Fail[[]T](resp.Error, resp.StatusCode)
		}

		items := opts.ExtractItems(resp.Data)
		all = append(all, items...)
		if opts.OnPage != nil {
			opts.OnPage(page+1, items)
		}

		nextCursor, ok := opts.ExtractCursor(resp.Data)
		if !ok || nextCursor == zero {
			break
		}
		cursor = nextCursor
	}

	return envelope.Ok[[]T](all, 200, nil)
}
