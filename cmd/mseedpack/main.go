// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mseedpack reads a stream of records, merges them into a
// TraceList, and re-packs the merged result into records no larger
// than a given size — a round trip through the engine useful for
// re-blocking a record stream to a new record length or for
// compacting many short records produced by a noisy acquisition
// system.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/earthscope-oss/mseedtrace/record"
	"github.com/earthscope-oss/mseedtrace/trace"
)

func main() {
	var (
		flagInput    = flag.String("i", "", "input record stream `file` (default: stdin)")
		flagOutput   = flag.String("o", "", "output record stream `file` (default: stdout)")
		flagMaxLen   = flag.Int("maxlen", 512, "maximum encoded record length in bytes")
		flagFlush    = flag.Bool("flush", true, "flush partial trailing records instead of holding them back")
		flagContinue = flag.Bool("k", false, "keep going past records that fail to merge, and at the first malformed record stop reading but still pack what was read")
		flagVerbose  = flag.Bool("v", false, "log merge and pack decisions (new channels, healed gaps, retired segments)")
	)
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	var logger *zap.Logger
	if *flagVerbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer logger.Sync()
	} else {
		logger = zap.NewNop()
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
	out := os.Stdout
	if *flagOutput != "" {
		f, err := os.Create(*flagOutput)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		out = f
	}

	buf, err := io.ReadAll(in)
	if err != nil {
		log.Fatal(err)
	}

	l := trace.NewList()
	l.SetLogger(logger.Sugar())
	var parseErrs error
	added := 0
	for len(buf) > 0 {
		rec, n, err := record.ParseRecord(buf)
		if err != nil {
			parseErrs = multierr.Append(parseErrs, err)
			if !*flagContinue {
				log.Fatal(parseErrs)
			}
			// Can't resync past a corrupt record without
			// knowing its length; give up on the remainder
			// of this stream but report what we found.
			break
		}
		if _, err := l.AddDefault(rec); err != nil {
			parseErrs = multierr.Append(parseErrs, fmt.Errorf("merging %s@%d: %w", rec.SID, rec.StartTime, err))
			if !*flagContinue {
				log.Fatal(parseErrs)
			}
		}
		added++
		buf = buf[n:]
	}

	opts := trace.PackOptions{MaxRecordLen: *flagMaxLen, Flush: *flagFlush}
	created, packed, err := l.Pack(opts, func(rec []byte) error {
		_, err := out.Write(rec)
		return err
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Fprintf(os.Stderr, "read %d records, wrote %d records (%d samples)\n", added, created, packed)
	if parseErrs != nil {
		fmt.Fprintf(os.Stderr, "skipped input with errors: %v\n", parseErrs)
	}
}
