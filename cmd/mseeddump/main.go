// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mseeddump prints the contents of a record stream, either as
// the raw sequence of records in file order or as the merged
// TraceList built by reading them one at a time.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/earthscope-oss/mseedtrace/record"
	"github.com/earthscope-oss/mseedtrace/trace"
)

func main() {
	var (
		flagInput  = flag.String("i", "", "input record stream `file` (default: stdin)")
		flagMerged = flag.Bool("merged", true, "print the merged TraceList instead of the raw record stream")
		flagHeal   = flag.Bool("autoheal", true, "heal bridging gaps while merging")
		flagSplit  = flag.Bool("split-version", false, "keep distinct publication versions as distinct IDs")
	)
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	in := os.Stdin
	if *flagInput != "" {
		f, err := os.Open(*flagInput)
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

	if !*flagMerged {
		dumpRaw(buf)
		return
	}
	dumpMerged(buf, *flagHeal, *flagSplit)
}

func dumpRaw(buf []byte) {
	for len(buf) > 0 {
		rec, n, err := record.ParseRecord(buf)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s v%d start=%d rate=%v samples=%d/%d\n",
			rec.SID, rec.PubVersion, rec.StartTime, rec.SampRate, rec.NumSamples, rec.SampleCnt)
		buf = buf[n:]
	}
}

func dumpMerged(buf []byte, autoheal, splitVersion bool) {
	l := trace.NewList()
	opts := trace.AddOptions{AutoHeal: autoheal, SplitVersion: splitVersion}
	for len(buf) > 0 {
		rec, n, err := record.ParseRecord(buf)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := l.Add(rec, opts); err != nil {
			log.Fatalf("merging record for %s@%d: %v", rec.SID, rec.StartTime, err)
		}
		buf = buf[n:]
	}

	stats := l.Stats()
	fmt.Printf("%d IDs, %d segments, %d samples, %d..%d\n",
		stats.NumIDs, stats.NumSegments, stats.TotalSamples, stats.Earliest, stats.Latest)

	for id := l.First(); id != nil; id = id.Next() {
		fmt.Printf("%s v%d: %d segment(s)\n", id.SID, id.PubVersion, id.NumSegments)
		for seg := id.First; seg != nil; seg = seg.Next {
			fmt.Printf("  %d..%d rate=%v samples=%d\n", seg.Start, seg.End, seg.SampRate, seg.NumSamples)
		}
	}
}
