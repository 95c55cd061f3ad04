package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// HTTPScanner calls the extraction service over REST. Responses come from an
// LLM pipeline and are parsed tolerantly: a malformed candidate is skipped
// rather than failing the whole scan.
type HTTPScanner struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *logrus.Logger
}

func NewHTTPScanner(baseURL, token string, log *logrus.Logger) *HTTPScanner {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	return &HTTPScanner{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    rc,
		log:     log,
	}
}

func (s *HTTPScanner) Scan(ctx context.Context, maxResults, daysBack int) ([]Candidate, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("days_back", strconv.Itoa(daysBack))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scan?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read scan response: %w", err)
	}
	body := string(raw)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		// the service reports mailbox state in the error field
		switch gjson.Get(body, "error").String() {
		case "not_connected":
			return nil, ErrNotConnected
		case "auth_expired":
			return nil, ErrAuthExpired
		}
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var out []Candidate
	gjson.Get(body, "candidates").ForEach(func(_, item gjson.Result) bool {
		c, ok := s.parseCandidate(item)
		if !ok {
			s.log.WithField("raw", item.Raw).Debug("skipping malformed candidate")
			return true
		}
		out = append(out, c)
		return true
	})
	return out, nil
}

func (s *HTTPScanner) parseCandidate(item gjson.Result) (Candidate, bool) {
	name := strings.TrimSpace(item.Get("name").String())
	messageID := item.Get("message_id").String()
	if name == "" || messageID == "" {
		return Candidate{}, false
	}
	c := Candidate{
		ID:                uuid.NewString(),
		MessageID:         messageID,
		MessageLink:       item.Get("message_link").String(),
		Name:              name,
		Category:          item.Get("category").String(),
		Confidence:        item.Get("confidence").Float(),
		AmountConfidence:  item.Get("field_confidence.amount").Float(),
		DueDateConfidence: item.Get("field_confidence.due_date").Float(),
		Duplicate:         item.Get("duplicate").Bool(),
		DuplicateReason:   item.Get("duplicate_reason").String(),
		Evidence:          map[string]string{},
	}
	if amt := item.Get("amount"); amt.Exists() && amt.Type != gjson.Null {
		d, err := decimal.NewFromString(amt.String())
		if err == nil && !d.IsNegative() {
			c.Amount = &d
		}
	}
	if due := item.Get("due_date"); due.Exists() && due.String() != "" {
		t, err := time.ParseInLocation("2006-01-02", due.String(), time.UTC)
		if err == nil {
			c.DueDate = &t
		}
	}
	item.Get("evidence").ForEach(func(k, v gjson.Result) bool {
		c.Evidence[k.String()] = v.String()
		return true
	})
	return c, true
}
