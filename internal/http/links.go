package httpx

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jobkeeper/jobkeeper/internal/data"
	"github.com/jobkeeper/jobkeeper/internal/domain/model"
)

// writePaginationLinks renders the page cursors as a Link header with
// rel="next", rel="prev", and rel="first" entries. The header is only
// written by callers when the request itself asked for pagination.
func writePaginationLinks(w http.ResponseWriter, r *http.Request, baseURL string, list *model.JobList) {
	var links []string

	if list.NextCursor != nil {
		if link, ok := pageLink(r, baseURL, *list.NextCursor, "next"); ok {
			links = append(links, link)
		}
	}
	if list.PrevCursor != nil {
		if link, ok := pageLink(r, baseURL, *list.PrevCursor, "prev"); ok {
			links = append(links, link)
		}
	}

	first := cloneQuery(r)
	first.Del(paramCursor)
	links = append(links, fmt.Sprintf("<%s>; rel=%q", pageURL(r, baseURL, first), "first"))

	w.Header().Set("Link", strings.Join(links, ", "))
}

func pageLink(r *http.Request, baseURL string, cursor model.JobCursor, rel string) (string, bool) {
	token, err := data.EncodeJobCursor(cursor)
	if err != nil {
		return "", false
	}
	q := cloneQuery(r)
	q.Set(paramCursor, token)
	return fmt.Sprintf("<%s>; rel=%q", pageURL(r, baseURL, q), rel), true
}

func cloneQuery(r *http.Request) url.Values {
	q := r.URL.Query()
	clone := make(url.Values, len(q))
	for k, vs := range q {
		clone[k] = append([]string(nil), vs...)
	}
	return clone
}

func pageURL(r *http.Request, baseURL string, q url.Values) string {
	u := strings.TrimSuffix(baseURL, "/") + r.URL.Path
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
