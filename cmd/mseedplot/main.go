// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mseedplot renders a PNG coverage strip for a TraceList: one
// row per source identifier, shaded by sample density over time
// buckets, with a DejaVu-rendered SID label per row and vertical tick
// lines from a log-scale density axis.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"os"

	"github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/vec"
	"github.com/golang/freetype"

	localscale "github.com/earthscope-oss/mseedtrace/scale"

	"github.com/earthscope-oss/mseedtrace/record"
	"github.com/earthscope-oss/mseedtrace/trace"
)

func main() {
	var (
		flagInput  = flag.String("i", "", "input record stream `file` (default: stdin)")
		flagOutput = flag.String("o", "coverage.png", "output PNG `file`")
		flagFont   = flag.String("font", "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", "TrueType font `file` for labels")
		flagWidth  = flag.Int("w", 800, "plot width in pixels")
		flagBucket = flag.Int("rowheight", 16, "row height in pixels")
	)
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	l := readTraceList(*flagInput)
	stats := l.Stats()
	if stats.NumIDs == 0 {
		log.Fatal("no channels to plot")
	}

	rows := buildRows(l, *flagWidth, int64(stats.Earliest), int64(stats.Latest))
	img := render(rows, *flagWidth, *flagBucket, *flagFont)

	out, err := os.Create(*flagOutput)
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s: %d channels, %d..%d\n", *flagOutput, stats.NumIDs, stats.Earliest, stats.Latest)
}

func readTraceList(input string) *trace.List {
	in := os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		in = f
	}
	buf, err := io.ReadAll(in)
	if err != nil {
		log.Fatal(err)
	}

	l := trace.NewList()
	for len(buf) > 0 {
		rec, n, err := record.ParseRecord(buf)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := l.AddDefault(rec); err != nil {
			log.Fatal(err)
		}
		buf = buf[n:]
	}
	return l
}

// row is one channel's per-bucket sample count across the plot's time
// range.
type row struct {
	sid     string
	buckets []int
}

func buildRows(l *trace.List, width int, earliest, latest int64) []row {
	if latest <= earliest {
		latest = earliest + 1
	}
	// A linear scale maps the plot's absolute time range to [0, 1];
	// bucketing then just scales that by width, the same division of
	// labor as NewOutputScale below for the density axis.
	timeline := localscale.NewLinear([]float64{float64(earliest), float64(latest)})
	var rows []row
	for id := l.First(); id != nil; id = id.Next() {
		r := row{sid: id.SID, buckets: make([]int, width)}
		for seg := id.First; seg != nil; seg = seg.Next {
			startBucket := int(timeline.Of(float64(int64(seg.Start))) * float64(width))
			endBucket := int(timeline.Of(float64(int64(seg.End))) * float64(width))
			if startBucket < 0 {
				startBucket = 0
			}
			if endBucket >= width {
				endBucket = width - 1
			}
			samplesPerBucket := 0
			if n := endBucket - startBucket + 1; n > 0 {
				samplesPerBucket = seg.NumSamples / n
			}
			for b := startBucket; b <= endBucket && b < width; b++ {
				r.buckets[b] += samplesPerBucket
			}
		}
		rows = append(rows, r)
	}
	return rows
}

const (
	marginLeft = 160
	marginTop  = 24
)

func render(rows []row, width, rowHeight int, fontPath string) *image.NRGBA {
	maxCount := 1
	for _, r := range rows {
		for _, c := range r.buckets {
			if c > maxCount {
				maxCount = c
			}
		}
	}
	// Color density uses go-moremath's log scale, applied to sample
	// density per bucket.
	density, err := scale.NewLog(1, float64(maxCount+1), 10)
	if err != nil {
		log.Fatal(err)
	}
	height := marginTop + rowHeight*len(rows)
	img := image.NewNRGBA(image.Rect(0, 0, marginLeft+width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	fontCtx := loadFont(fontPath, img)

	// The density scale maps sample counts to [0, 1]; an output-space
	// scale then maps that to pixel columns for the tick marks.
	out := localscale.NewOutputScale(marginLeft, float64(marginLeft+width))
	// A power scale gamma-corrects the linear [0,1] shade fraction so
	// low-density buckets stay visible instead of washing out near
	// white.
	gamma := localscale.NewPower([]float64{0, 1}, 0.6)
	major, _ := density.Ticks(scale.TickOptions{Max: 5})
	xs := vec.Map(func(sx float64) float64 {
		x, _ := out.Of(density.Map(sx))
		return x
	}, major)
	for _, x := range xs {
		xi := int(x)
		for y := marginTop; y < height; y++ {
			img.SetNRGBA(xi, y, color.NRGBA{200, 200, 200, 255})
		}
	}

	for i, r := range rows {
		top := marginTop + i*rowHeight
		if fontCtx != nil {
			fontCtx.DrawString(r.sid, freetype.Pt(4, top+rowHeight-2))
		}
		for x, c := range r.buckets {
			if c == 0 {
				continue
			}
			shade := density.Map(float64(c))
			if shade < 0 {
				shade = 0
			}
			if shade > 1 {
				shade = 1
			}
			col := color.NRGBA{R: 200, G: 30, B: 30, A: uint8(255 * gamma.Of(shade))}
			for y := top; y < top+rowHeight-1; y++ {
				img.SetNRGBA(marginLeft+x, y, col)
			}
		}
	}
	return img
}

func loadFont(path string, dst draw.Image) *freetype.Context {
	data, err := os.ReadFile(path)
	if err != nil {
		// Labels are diagnostic, not load-bearing; fall back to
		// an unlabeled plot rather than failing the whole run.
		log.Printf("mseedplot: no font (%v), rendering without labels", err)
		return nil
	}
	f, err := freetype.ParseFont(data)
	if err != nil {
		log.Printf("mseedplot: parsing font: %v", err)
		return nil
	}
	ctx := freetype.NewContext()
	ctx.SetFontSize(11)
	ctx.SetFont(f)
	ctx.SetSrc(image.Black)
	ctx.SetDst(dst)
	ctx.SetClip(dst.Bounds())
	return ctx
}
