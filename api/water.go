package api

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"wetterpost/post"
)

// DefaultWaterURLTemplate is the Bavarian gauge table; %s is the station
// identifier.
const DefaultWaterURLTemplate = "https://www.gkd.bayern.de/de/seen/wassertemperatur/isar/%s/messwerte/tabelle"

var clockPattern = regexp.MustCompile(`\b([01]\d|2[0-3]):[0-5]\d\b`)

// WaterScraper reads the latest water temperature from a gauge table page.
type WaterScraper struct {
	client      *resty.Client
	urlTemplate string
}

// NewWaterScraper creates a scraper. An empty template selects
// DefaultWaterURLTemplate.
func NewWaterScraper(urlTemplate string, timeout time.Duration) *WaterScraper {
	if urlTemplate == "" {
		urlTemplate = DefaultWaterURLTemplate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WaterScraper{
		client:      newRESTClient("", timeout),
		urlTemplate: urlTemplate,
	}
}

// URL returns the page address for a station identifier.
func (s *WaterScraper) URL(id string) string {
	return strings.Replace(s.urlTemplate, "%s", url.PathEscape(id), 1)
}

// Fetch returns the first table row as a reading. Every failure, including a
// panic inside the parser, is reported as an error wrapping
// ErrWaterUnavailable.
func (s *WaterScraper) Fetch(ctx context.Context, id string) (reading *post.WaterReading, err error) {
	defer func() {
		if r := recover(); r != nil {
			reading, err = nil, fmt.Errorf("%w: parser panic: %v", ErrWaterUnavailable, r)
		}
	}()

	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: no station configured", ErrWaterUnavailable)
	}

	pageURL := s.URL(id)
	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWaterUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrWaterUnavailable, pageURL, resp.StatusCode())
	}

	return ParseWaterTable(resp.Body())
}

// ParseWaterTable extracts the reading from the first row of the first
// table body: cell 0 holds the time of measurement, cell 1 the temperature.
func ParseWaterTable(html []byte) (*post.WaterReading, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWaterUnavailable, err)
	}

	row := doc.Find("tbody").First().Find("tr").First()
	if row.Length() == 0 {
		return nil, fmt.Errorf("%w: table has no rows", ErrWaterUnavailable)
	}

	cells := row.Find("td")
	if cells.Length() < 2 {
		return nil, fmt.Errorf("%w: first row has %d cells", ErrWaterUnavailable, cells.Length())
	}

	timestamp := clockPattern.FindString(cells.Eq(0).Text())
	if timestamp == "" {
		return nil, fmt.Errorf("%w: no time in %q", ErrWaterUnavailable, strings.TrimSpace(cells.Eq(0).Text()))
	}

	temperature := strings.TrimSpace(cells.Eq(1).Text())
	if temperature == "" {
		return nil, fmt.Errorf("%w: empty temperature cell", ErrWaterUnavailable)
	}

	return &post.WaterReading{Timestamp: timestamp, Temperature: temperature}, nil
}
