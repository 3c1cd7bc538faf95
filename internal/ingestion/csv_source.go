package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hod-momentum-lab/internal/domain"
)

// PricePlaces is the precision prices are rounded to on load.
const PricePlaces = 4

var (
	// ErrMalformedRow is returned for a CSV row that cannot be parsed.
	ErrMalformedRow = errors.New("malformed csv row")

	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing csv column")
)

var barColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// Accepted timestamp layouts. Layouts without a zone are read in the
// exchange location.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CSVSource reads a data directory laid out as:
//
//	<dir>/minute/<SYMBOL>.csv   timestamp,open,high,low,close,volume
//	<dir>/daily/<SYMBOL>.csv    timestamp,open,high,low,close,volume
//	<dir>/floats.csv            symbol,float_shares
//
// It implements BarSource and ProfileSource.
type CSVSource struct {
	dir string
	loc *time.Location
	now func() time.Time
}

// NewCSVSource creates a source rooted at dir. Zone-less timestamps are
// interpreted in loc.
func NewCSVSource(dir string, loc *time.Location) *CSVSource {
	return &CSVSource{dir: dir, loc: loc, now: time.Now}
}

func (s *CSVSource) resolutionDir(res domain.Resolution) (string, error) {
	switch res {
	case domain.ResolutionMinute:
		return filepath.Join(s.dir, "minute"), nil
	case domain.ResolutionDaily:
		return filepath.Join(s.dir, "daily"), nil
	default:
		return "", fmt.Errorf("unsupported resolution %q", res)
	}
}

// Symbols lists the CSV files under the resolution directory.
// A missing directory yields no symbols.
func (s *CSVSource) Symbols(_ context.Context, res domain.Resolution) ([]string, error) {
	dir, err := s.resolutionDir(res)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Fetch reads one symbol file, trying the upper then lower case name.
// A missing file yields no bars.
func (s *CSVSource) Fetch(_ context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error) {
	dir, err := s.resolutionDir(res)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, symbol+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		path = filepath.Join(dir, strings.ToLower(symbol)+".csv")
		f, err = os.Open(path)
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBars(f, symbol, res, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses a bar CSV with a header row. Columns are matched by name,
// case-insensitively. Daily bars are stamped at local midnight.
func ReadBars(r io.Reader, symbol string, res domain.Resolution, loc *time.Location) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, barColumns)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			continue
		}
		bar, err := parseBar(rec, idx, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar.Symbol = symbol
		bar.Resolution = res
		if res == domain.ResolutionDaily {
			bar.Timestamp = domain.DateOf(bar.Timestamp, loc).Time(loc)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(rec []string, idx map[string]int, loc *time.Location) (domain.Bar, error) {
	var b domain.Bar
	ts, err := parseTimestamp(rec[idx["timestamp"]], loc)
	if err != nil {
		return b, err
	}
	b.Timestamp = ts

	prices := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
	for i, col := range barColumns[1:5] {
		v, err := parsePrice(rec[idx[col]])
		if err != nil {
			return b, fmt.Errorf("%s: %w", col, err)
		}
		*prices[i] = v
	}

	vol, err := decimal.NewFromString(strings.TrimSpace(rec[idx["volume"]]))
	if err != nil {
		return b, fmt.Errorf("volume %q: %w", rec[idx["volume"]], ErrMalformedRow)
	}
	if vol.IsNegative() {
		return b, fmt.Errorf("negative volume %s: %w", vol, ErrMalformedRow)
	}
	b.Volume = vol.IntPart()
	return b, nil
}

func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, ErrMalformedRow)
	}
	return d.Round(PricePlaces).InexactFloat64(), nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp: %w", ErrMalformedRow)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	// Unix seconds.
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, ErrMalformedRow)
}

// FetchProfiles reads floats.csv. An empty float_shares cell records an unknown
// float. A missing file yields no profiles.
func (s *CSVSource) FetchProfiles(_ context.Context) ([]*domain.SymbolProfile, error) {
	path := filepath.Join(s.dir, "floats.csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	profiles, err := ReadProfiles(f, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// ReadProfiles parses a symbol,float_shares CSV with a header row.
func ReadProfiles(r io.Reader, updatedAt time.Time) ([]*domain.SymbolProfile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, []string{"symbol", "float_shares"})
	if err != nil {
		return nil, err
	}

	var profiles []*domain.SymbolProfile
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(rec[idx["symbol"]]))
		if sym == "" {
			return nil, fmt.Errorf("line %d: empty symbol: %w", line, ErrMalformedRow)
		}
		p := &domain.SymbolProfile{Symbol: sym, UpdatedAt: updatedAt}
		if raw := strings.TrimSpace(rec[idx["float_shares"]]); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil || d.IsNegative() {
				return nil, fmt.Errorf("line %d: float_shares %q: %w", line, raw, ErrMalformedRow)
			}
			shares := d.IntPart()
			p.FloatShares = &shares
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// ProfileSource adapts the CSV floats file to the ProfileSource interface.
func (s *CSVSource) ProfileSource() ProfileSource {
	return csvProfiles{s}
}

type csvProfiles struct{ s *CSVSource }

func (p csvProfiles) Fetch(ctx context.Context) ([]*domain.SymbolProfile, error) {
	return p.s.FetchProfiles(ctx)
}

func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s: %w", col, ErrMissingColumn)
		}
	}
	return idx, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var (
	_ BarSource     = (*CSVSource)(nil)
	_ ProfileSource = csvProfiles{}
)
