package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

// FetchError distinguishes transient trouble (network, 5xx — retried next cycle
// for free, the cursor never moved) from configuration trouble (bad spreadsheet
// or tab id — the location is skipped until someone fixes it).
type FetchError struct {
	Transient  bool
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	kind := "config"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("sheets fetch failed (%s, status %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("sheets fetch failed (%s): %s", kind, e.Message)
}

func IsConfigError(err error) bool {
	fe, ok := err.(*FetchError)
	return ok && !fe.Transient
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchNewRows reads the whole tab and returns only the data rows past the
// cursor, keyed by the header row. newCursor is the tab's data-row count after
// the read. A tab shorter than the stored cursor means rows were deleted
// upstream; the cursor resets to zero and every row comes back (the sent-record
// tracker keeps resets from turning into resends).
func (c *Client) FetchNewRows(ctx context.Context, spreadsheetID, tabName string, cursor int) ([]entity.RawRow, int, error) {
	reqURL := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?majorDimension=ROWS&key=%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(tabName), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, cursor, &FetchError{Transient: false, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, cursor, &FetchError{Transient: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		transient := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, cursor, &FetchError{Transient: transient, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var payload valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, cursor, &FetchError{Transient: true, Message: fmt.Sprintf("decode: %v", err)}
	}

	if len(payload.Values) == 0 {
		if cursor > 0 {
			log.Printf("⚠️ Sheets: tab %q is empty (cursor %d), resetting cursor to 0", tabName, cursor)
		}
		return nil, 0, nil
	}

	header := payload.Values[0]
	data := payload.Values[1:]

	if len(data) < cursor {
		log.Printf("⚠️ Sheets: tab %q shrank (%d rows < cursor %d), resetting cursor to 0", tabName, len(data), cursor)
		cursor = 0
	}

	rows := make([]entity.RawRow, 0, len(data)-cursor)
	for _, cells := range data[cursor:] {
		row := make(entity.RawRow, len(header))
		for j, name := range header {
			if j < len(cells) {
				row[name] = cells[j]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, len(data), nil
}
