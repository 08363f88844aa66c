package progress

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/pkg/httputil"
)

const dateLayout = "2006-01-02"

// feedRecord wire format of the JSON progress feed
type feedRecord struct {
	Date        string  `json:"date" yaml:"date"`
	DailyPoints float64 `json:"daily_points" yaml:"daily_points"`
	TeamsActive int     `json:"teams_active" yaml:"teams_active"`
}

// HTTPSource loads records from a JSON feed:
// GET <base>?from=YYYY-MM-DD&to=YYYY-MM-DD[&item=<id>] → [{date, daily_points, teams_active}]
type HTTPSource struct {
	client  *httputil.Client
	baseURL string
}

// NewHTTPSource creates a feed source
func NewHTTPSource(client *httputil.Client, baseURL string) *HTTPSource {
	return &HTTPSource{client: client, baseURL: baseURL}
}

// Load implements contracts.SeriesSource
func (s *HTTPSource) Load(ctx context.Context, scope contracts.Scope, from, to time.Time) ([]contracts.DailyRecord, error) {
	target, err := windowURL(s.baseURL, scope, from, to)
	if err != nil {
		return nil, err
	}

	var payload []feedRecord
	if err := s.client.GetJSON(ctx, target, &payload); err != nil {
		return nil, fmt.Errorf("fetch progress feed: %w", err)
	}

	records := make([]contracts.DailyRecord, 0, len(payload))
	for i, p := range payload {
		date, err := time.Parse(dateLayout, p.Date)
		if err != nil {
			return nil, fmt.Errorf("feed record %d: invalid date %q: %w", i, p.Date, err)
		}
		records = append(records, contracts.DailyRecord{
			Date:        date,
			DailyPoints: p.DailyPoints,
			TeamsActive: p.TeamsActive,
		})
	}
	return records, nil
}

func windowURL(base string, scope contracts.Scope, from, to time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %q: %w", base, err)
	}

	q := u.Query()
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))
	if scope.ItemID != "" {
		q.Set("item", scope.ItemID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTMLReportSource scrapes the daily progress table of a published report page.
// Rows of table.progress are read as: date | points | teams (optional); a
// data-item attribute on the row scopes it to one work item.
type HTMLReportSource struct {
	client  *httputil.Client
	pageURL string
}

// NewHTMLReportSource creates a report-page source
func NewHTMLReportSource(client *httputil.Client, pageURL string) *HTMLReportSource {
	return &HTMLReportSource{client: client, pageURL: pageURL}
}

// Load implements contracts.SeriesSource
func (s *HTMLReportSource) Load(ctx context.Context, scope contracts.Scope, from, to time.Time) ([]contracts.DailyRecord, error) {
	body, err := s.client.GetBody(ctx, s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch progress report: %w", err)
	}
	defer body.Close()

	return ParseHTMLReport(body, scope, from, to)
}

var reportDate = regexp.MustCompile(`^\d{4}[-./]\d{2}[-./]\d{2}$`)

// ParseHTMLReport extracts records within [from, to] from a report page
func ParseHTMLReport(r io.Reader, scope contracts.Scope, from, to time.Time) ([]contracts.DailyRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse progress report: %w", err)
	}

	table := doc.Find("table.progress")
	if table.Length() == 0 {
		return nil, fmt.Errorf("parse progress report: table.progress not found")
	}

	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)

	var records []contracts.DailyRecord
	table.First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		if item, ok := row.Attr("data-item"); ok && scope.ItemID != "" && item != scope.ItemID {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !reportDate.MatchString(dateText) {
			return
		}
		date, err := time.ParseInLocation(dateLayout, strings.NewReplacer(".", "-", "/", "-").Replace(dateText), from.Location())
		if err != nil {
			return
		}

		// 기간 필터
		if date.Before(from) || date.After(to) {
			return
		}

		rec := contracts.DailyRecord{Date: date, DailyPoints: parseNumber(cells.Eq(1).Text())}
		if cells.Length() > 2 {
			rec.TeamsActive = int(parseNumber(cells.Eq(2).Text()))
		}
		records = append(records, rec)
	})

	return records, nil
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
