package profile

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// maxLine bounds one JSON-lines record; long radials carry a few thousand samples.
const maxLine = 16 << 20

// Format selects an export encoding.
type Format string

const (
	// FormatJSONL writes one JSON object per profile.
	FormatJSONL Format = "jsonl"
	// FormatDelimited writes the ';'-separated compatibility file.
	FormatDelimited Format = "csv"
)

// ParseFormat accepts the names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl", "json":
		return FormatJSONL, nil
	case "csv", "delimited":
		return FormatDelimited, nil
	}
	return "", &model.ValidationError{Field: "format", Reason: "must be jsonl or csv"}
}

// FormatForPath guesses the encoding from a file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatDelimited
	}
	return FormatJSONL
}

// Ext is the file extension for the format.
func (f Format) Ext() string {
	if f == FormatDelimited {
		return ".csv"
	}
	return ".jsonl"
}

// WriteJSONL writes one profile per line.
func WriteJSONL(w io.Writer, profiles []model.Profile) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, p := range profiles {
		if !p.Consistent() {
			return eris.Errorf("profile: profile %d has sequences of unequal length", i)
		}
		if err := enc.Encode(p); err != nil {
			return eris.Wrapf(err, "profile: encode profile %d", i)
		}
	}
	return eris.Wrap(bw.Flush(), "profile: flush")
}

// ReadJSONL reads profiles written by WriteJSONL. Blank lines are ignored;
// undecodable or inconsistent lines are skipped and reported.
func ReadJSONL(r io.Reader) ([]model.Profile, []RowError, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []model.Profile
	var bad []RowError
	for row := 1; sc.Scan(); row++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var p model.Profile
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			bad = append(bad, RowError{Row: row, Err: err})
			continue
		}
		if !p.Consistent() {
			bad = append(bad, RowError{Row: row, Err: eris.New("sequences have unequal length")})
			continue
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return out, bad, eris.Wrap(err, "profile: scan jsonl")
	}
	return out, bad, nil
}

// Write encodes profiles in the given format.
func Write(w io.Writer, f Format, profiles []model.Profile) error {
	if f == FormatDelimited {
		return WriteDelimited(w, profiles)
	}
	return WriteJSONL(w, profiles)
}

// Read decodes profiles in the given format.
func Read(r io.Reader, f Format) ([]model.Profile, []RowError, error) {
	if f == FormatDelimited {
		return ReadDelimited(r)
	}
	return ReadJSONL(r)
}

// WriteFile writes profiles to path, creating parent directories.
func WriteFile(path string, f Format, profiles []model.Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "profile: create dir for %s", path)
	}
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "profile: create %s", path)
	}
	if err := Write(fh, f, profiles); err != nil {
		_ = fh.Close()
		return err
	}
	return eris.Wrapf(fh.Close(), "profile: close %s", path)
}

// ReadFile reads profiles from path, choosing the format by extension.
func ReadFile(path string) ([]model.Profile, []RowError, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, &model.ResourceMissingError{Resource: "profiles", Path: path, Err: err}
	}
	defer fh.Close() //nolint:errcheck
	return Read(fh, FormatForPath(path))
}
