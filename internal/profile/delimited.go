package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Delimiter separates columns in the compatibility file.
const Delimiter = ';'

// Columns is the header of the compatibility file. Coordinates are split
// into latitude (phi) and longitude (lam) for the transmitter (t) and
// receiver (r) ends.
var Columns = []string{"f", "p", "d", "h", "R", "Ct", "zone", "htg", "hrg", "pol", "phi_t", "phi_r", "lam_t", "lam_r", "azimuth"}

// WriteDelimited writes profiles as ';'-separated rows. List columns are
// bracketed literal arrays ("[0.0, 0.03]") that a consumer parses back into
// sequences.
func WriteDelimited(w io.Writer, profiles []model.Profile) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "profile: write header")
	}
	for i, p := range profiles {
		if !p.Consistent() {
			return eris.Errorf("profile: profile %d has sequences of unequal length", i)
		}
		if err := cw.Write(record(p)); err != nil {
			return eris.Wrapf(err, "profile: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "profile: flush")
}

func record(p model.Profile) []string {
	return []string{
		formatFloat(p.FrequencyGHz),
		formatNumber(p.TimePercentage),
		floatList(p.Distances),
		intList(p.Heights),
		numberList(p.Resistances),
		intList(p.Categories),
		intList(p.Zones),
		formatFloat(p.TxHeightAGL),
		formatFloat(p.RxHeightAGL),
		strconv.Itoa(int(p.Polarization)),
		formatFloat(p.Transmitter.Lat),
		formatFloat(p.Receiver.Lat),
		formatFloat(p.Transmitter.Lon),
		formatFloat(p.Receiver.Lon),
		formatFloat(p.AzimuthDeg),
	}
}

// formatFloat renders v the way a Python float literal reads: shortest
// round-trip digits, always with a decimal point or exponent.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// formatNumber renders whole values as integers, others as floats.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return formatFloat(v)
}

func floatList(vs []float64) string {
	return list(len(vs), func(i int) string { return formatFloat(vs[i]) })
}

func numberList(vs []float64) string {
	return list(len(vs), func(i int) string { return formatNumber(vs[i]) })
}

func intList(vs []int) string {
	return list(len(vs), func(i int) string { return strconv.Itoa(vs[i]) })
}

func list(n int, item func(int) string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item(i))
	}
	sb.WriteByte(']')
	return sb.String()
}

// RowError records a row ReadDelimited could not parse.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// ReadDelimited parses a compatibility file. Rows that fail to parse are
// skipped and reported in the second return value; the error is reserved for
// an unreadable stream or header.
func ReadDelimited(r io.Reader) ([]model.Profile, []RowError, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "profile: read header")
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, nil, eris.Errorf("profile: header is missing column %q", c)
		}
	}

	var out []model.Profile
	var bad []RowError
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				bad = append(bad, RowError{Row: row, Err: err})
				continue
			}
			return out, bad, eris.Wrapf(err, "profile: read row %d", row)
		}
		p, err := parseRecord(rec, idx)
		if err != nil {
			bad = append(bad, RowError{Row: row, Err: err})
			continue
		}
		out = append(out, p)
	}
	return out, bad, nil
}

func parseRecord(rec []string, idx map[string]int) (model.Profile, error) {
	var p model.Profile
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(rec) {
			return "", fmt.Errorf("missing column %s", name)
		}
		return strings.TrimSpace(rec[i]), nil
	}
	scalar := func(name string, dst *float64) error {
		s, err := field(name)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		*dst = v
		return nil
	}
	floats := func(name string, dst *[]float64) error {
		s, err := field(name)
		if err != nil {
			return err
		}
		v, err := parseFloatList(s)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		*dst = v
		return nil
	}
	ints := func(name string, dst *[]int) error {
		s, err := field(name)
		if err != nil {
			return err
		}
		v, err := parseIntList(s)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		*dst = v
		return nil
	}

	var pol float64
	steps := []error{
		scalar("f", &p.FrequencyGHz),
		scalar("p", &p.TimePercentage),
		floats("d", &p.Distances),
		ints("h", &p.Heights),
		floats("R", &p.Resistances),
		ints("Ct", &p.Categories),
		ints("zone", &p.Zones),
		scalar("htg", &p.TxHeightAGL),
		scalar("hrg", &p.RxHeightAGL),
		scalar("pol", &pol),
		scalar("phi_t", &p.Transmitter.Lat),
		scalar("phi_r", &p.Receiver.Lat),
		scalar("lam_t", &p.Transmitter.Lon),
		scalar("lam_r", &p.Receiver.Lon),
		scalar("azimuth", &p.AzimuthDeg),
	}
	for _, err := range steps {
		if err != nil {
			return model.Profile{}, err
		}
	}
	p.Polarization = model.Polarization(int(pol))
	if !p.Consistent() {
		return model.Profile{}, errors.New("sequences have unequal length")
	}
	return p, nil
}

// parseFloatList reads a bracketed literal array of numbers.
func parseFloatList(s string) ([]float64, error) {
	items, err := splitList(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		v, err := strconv.ParseFloat(it, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseIntList reads a bracketed literal array of whole numbers; "3.0" is accepted.
func parseIntList(s string) ([]int, error) {
	fs, err := parseFloatList(s)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		out[i] = int(f)
	}
	return out, nil
}

func splitList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%q is not a bracketed list", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	// tolerate a trailing comma
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts, nil
}
