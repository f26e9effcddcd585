package surrogate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// WriteTo writes the table as whitespace separated text: a "H S V" header,
// then one row per texel holding the normalized grid position, the planet and
// atmosphere radii over MaxPlanetRadius and the RGBA texel.
func (l *LUT) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	fmt.Fprintf(cw, "%d %d %d\n", l.Heights, l.SunAngles, l.ViewAngles)
	planet := l.PlanetRadius / MaxPlanetRadius
	atmo := l.AtmosphereRadius / MaxPlanetRadius

	for h := 0; h < l.Heights; h++ {
		for s := 0; s < l.SunAngles; s++ {
			for v := 0; v < l.ViewAngles; v++ {
				t := l.At(h, s, v)
				fmt.Fprintf(cw, "%g %g %g %g %g %g %g %g %g\n",
					float64(h)/float64(l.Heights-1),
					float64(s)/float64(l.SunAngles-1),
					float64(v)/float64(l.ViewAngles-1),
					planet, atmo,
					t[0], t[1], t[2], t[3])
			}
		}
	}

	if cw.err != nil {
		return cw.n, fmt.Errorf("failed to write lookup table: %w", cw.err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("failed to write lookup table: %w", err)
	}
	return cw.n, nil
}

// ReadLUT parses a table written by WriteTo
func ReadLUT(r io.Reader) (*LUT, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return sc.Text(), nil
	}

	var dims [3]int
	for i := range dims {
		tok, err := next()
		if err != nil {
			return nil, fmt.Errorf("failed to read lookup table header: %w", err)
		}
		if dims[i], err = strconv.Atoi(tok); err != nil {
			return nil, fmt.Errorf("invalid lookup table header %q: %w", tok, err)
		}
	}

	lut, err := NewLUT(dims[0], dims[1], dims[2])
	if err != nil {
		return nil, err
	}

	var row [9]float64
	for h := 0; h < lut.Heights; h++ {
		for s := 0; s < lut.SunAngles; s++ {
			for v := 0; v < lut.ViewAngles; v++ {
				for i := range row {
					tok, err := next()
					if err != nil {
						return nil, fmt.Errorf("lookup table truncated at texel [%d][%d][%d]: %w", h, s, v, err)
					}
					if row[i], err = strconv.ParseFloat(tok, 64); err != nil {
						return nil, fmt.Errorf("invalid value %q at texel [%d][%d][%d]: %w", tok, h, s, v, err)
					}
				}
				lut.Set(h, s, v, Texel{row[5], row[6], row[7], row[8]})
			}
		}
	}
	lut.PlanetRadius = row[3] * MaxPlanetRadius
	lut.AtmosphereRadius = row[4] * MaxPlanetRadius

	return lut, nil
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// SaveLUT writes the table to path, zstd-compressed when path ends in .zst
func SaveLUT(path string, lut *LUT) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if !compressed(path) {
		_, err = lut.WriteTo(f)
		return err
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := lut.WriteTo(enc); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

// LoadLUT reads a table from path, decompressing it when path ends in .zst
func LoadLUT(path string) (*LUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if !compressed(path) {
		return ReadLUT(f)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	return ReadLUT(dec)
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
