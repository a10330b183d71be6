package extract

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	pdflib "github.com/ledongthuc/pdf"
)

var errNoImages = errors.New("no page images")

// embeddedImages returns the largest image drawn on each page. Only
// unfiltered and Flate streams in gray or RGB are understood; anything else
// is reported as an error so the caller can render the page instead.
func embeddedImages(path string) (imgs []image.Image, err error) {
	// The PDF library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			imgs, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		img, err := pageImage(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if img != nil {
			imgs = append(imgs, img)
		}
	}
	return imgs, nil
}

// pageImage decodes the largest image XObject of a page.
func pageImage(page pdflib.Page) (image.Image, error) {
	xobjects := page.Resources().Key("XObject")
	names := xobjects.Keys()
	sort.Strings(names)

	var best pdflib.Value
	var bestArea int64
	for _, name := range names {
		v := xobjects.Key(name)
		if v.Kind() != pdflib.Stream || v.Key("Subtype").Name() != "Image" {
			continue
		}
		if area := v.Key("Width").Int64() * v.Key("Height").Int64(); area > bestArea {
			best, bestArea = v, area
		}
	}
	if bestArea == 0 {
		return nil, nil
	}
	return decodeImage(best)
}

func filters(v pdflib.Value) []string {
	f := v.Key("Filter")
	switch f.Kind() {
	case pdflib.Name:
		return []string{f.Name()}
	case pdflib.Array:
		out := make([]string, f.Len())
		for i := range out {
			out[i] = f.Index(i).Name()
		}
		return out
	}
	return nil
}

// decodeImage builds an image from a raw sample stream.
func decodeImage(v pdflib.Value) (image.Image, error) {
	for _, name := range filters(v) {
		if name != "FlateDecode" {
			return nil, fmt.Errorf("image filter %s not supported", name)
		}
	}

	w, h := int(v.Key("Width").Int64()), int(v.Key("Height").Int64())
	bits := int(v.Key("BitsPerComponent").Int64())
	if v.Key("ImageMask").Bool() {
		bits = 1
	}

	var comps int
	switch cs := v.Key("ColorSpace").Name(); {
	case v.Key("ImageMask").Bool(), cs == "DeviceGray", cs == "CalGray":
		comps = 1
	case cs == "DeviceRGB", cs == "CalRGB":
		comps = 3
	default:
		return nil, fmt.Errorf("color space %q not supported", cs)
	}
	if bits != 1 && bits != 8 {
		return nil, fmt.Errorf("%d bits per component not supported", bits)
	}

	rd := v.Reader()
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}

	stride := (w*comps*bits + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("image stream short: %d bytes, want %d", len(data), stride*h)
	}

	// A Decode array of [1 0] means samples are stored inverted, and an
	// image mask paints where the sample is 0.
	invert := false
	if d := v.Key("Decode"); d.Kind() == pdflib.Array && d.Len() >= 2 {
		invert = d.Index(0).Float64() > d.Index(1).Float64()
	}

	if comps == 3 {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := range h {
			row := data[y*stride:]
			for x := range w {
				img.SetRGBA(x, y, color.RGBA{R: row[3*x], G: row[3*x+1], B: row[3*x+2], A: 0xFF})
			}
		}
		return img, nil
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := data[y*stride:]
		for x := range w {
			var g uint8
			if bits == 8 {
				g = row[x]
			} else if row[x/8]&(0x80>>(x%8)) != 0 {
				g = 0xFF
			}
			if invert {
				g = 0xFF - g
			}
			img.Pix[y*img.Stride+x] = g
		}
	}
	return img, nil
}
