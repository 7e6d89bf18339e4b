package modepicture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// columnHeader is the fixed final header line naming the two columns.
const columnHeader = "freq [MHz]\tMW abs. [a.u.]"

// headerPattern matches a metadata header line, "# key:\tvalue".
var headerPattern = regexp.MustCompile(`^# (\w*):\t(.*)$`)

// Write serializes the mode picture: one "# key:\tvalue" line per
// metadata entry in order, the column header, then the two-column table
// in 9 significant digit scientific notation, tab delimited.
func (mp *ModePicture) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, k := range mp.Metadata.Keys() {
		v, _ := mp.Metadata.Get(k)
		fmt.Fprintf(bw, "# %s:\t%s\n", k, v)
	}
	fmt.Fprintf(bw, "# %s\n", columnHeader)
	for i := range mp.FreqMHz {
		fmt.Fprintf(bw, "%.9E\t%.9E\n", mp.FreqMHz[i], mp.Abs[i])
	}
	return bw.Flush()
}

// Save writes the mode picture to a text file at path.
func (mp *ModePicture) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = mp.Write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Read parses a saved mode picture and re-derives its Q-value.  Only the
// raw curve and metadata are persisted; the fit is re-run at zoom 1, so
// the reloaded Q-value matches the saved one within fit tolerance.
func Read(r io.Reader) (*ModePicture, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	meta := NewMetadata()
	var freq, abs []float64
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.HasPrefix(text, "#") {
			if m := headerPattern.FindStringSubmatch(text); m != nil {
				meta.Set(m[1], m[2])
			}
			// the column title line also starts with # and is skipped
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, ParseError{Line: line, Reason: fmt.Sprintf("expected 2 columns, got %d", len(fields))}
		}
		f, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, ParseError{Line: line, Reason: "bad frequency value " + strconv.Quote(fields[0])}
		}
		a, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, ParseError{Line: line, Reason: "bad absorption value " + strconv.Quote(fields[1])}
		}
		freq = append(freq, f)
		abs = append(abs, a)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(freq) == 0 {
		return nil, ParseError{Reason: "no data rows"}
	}

	freq0, err := freqFromMetadata(meta)
	if err != nil {
		return nil, err
	}

	mp := &ModePicture{
		FreqMHz:  freq,
		Points:   mhzToPoints(freq),
		Abs:      abs,
		Freq0:    freq0,
		Metadata: meta,
	}
	if err := mp.refit(); err != nil {
		return nil, err
	}
	return mp, nil
}

// FromFile loads a saved mode picture from path.
func FromFile(path string) (*ModePicture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// freqFromMetadata extracts the center frequency in GHz from the
// "Frequency" header field, keeping only numeric characters, e.g.
// "9.385 GHz" -> 9.385.
func freqFromMetadata(meta *Metadata) (float64, error) {
	raw, ok := meta.Get("Frequency")
	if !ok {
		return 0, ParseError{Reason: `missing "Frequency" header field`}
	}
	var b strings.Builder
	for _, r := range raw {
		if r == '.' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, ParseError{Reason: `no numeric value in "Frequency" field ` + strconv.Quote(raw)}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, ParseError{Reason: `malformed "Frequency" field ` + strconv.Quote(raw)}
	}
	return f, nil
}
