package main

import (
	"fmt"
	"path/filepath"

	"github.com/downfa11-org/go-journal/pkg/bench"
	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/config"
	"github.com/downfa11-org/go-journal/pkg/disk"
	"github.com/downfa11-org/go-journal/pkg/forward"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/serde"
	"github.com/downfa11-org/go-journal/pkg/types"
	"github.com/downfa11-org/go-journal/util"
	"github.com/spf13/cobra"
)

// entryCodec builds the string codec the CLI reads and writes payloads with.
func entryCodec(cfg *config.Config) (journal.Codec[string], error) {
	var base journal.Codec[string]
	switch cfg.Codec {
	case config.CodecJSON:
		base = serde.JSON[string]{}
	case config.CodecMsgpack:
		base = serde.Msgpack[string]{}
	default:
		base = serde.String{}
	}
	if cfg.Compression == util.CompressionNone {
		return base, nil
	}
	compressed, err := serde.NewCompressed[string](base, cfg.Compression)
	if err != nil {
		return nil, err
	}
	return compressed, nil
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List segments with their kind, capacity and record count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names, err := disk.ListSegments(disk.OSFileSystem{}, cfg.Dir, cfg.Naming())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %8s %-9s %10s %10s %8s  %s\n", "FILE", "SEQ", "KIND", "CAPACITY", "USED", "RECORDS", "STATUS")
			for _, name := range names {
				res, err := disk.Scan(filepath.Join(cfg.Dir, name))
				if err != nil {
					fmt.Fprintf(out, "%-28s unreadable: %v\n", name, err)
					continue
				}
				status := "ok"
				if res.Torn != nil {
					status = "torn: " + res.Torn.Error()
				}
				fmt.Fprintf(out, "%-28s %8d %-9s %10d %10d %8d  %s\n",
					name, res.Header.Sequence, res.Header.Kind, res.Header.Capacity, res.End, len(res.Frames), status)
			}
			return nil
		},
	}
}

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every readable record without modifying the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := entryCodec(cfg)
			if err != nil {
				return err
			}
			names, err := disk.ListSegments(disk.OSFileSystem{}, cfg.Dir, cfg.Naming())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				_, err := disk.ScanFunc(filepath.Join(cfg.Dir, name), func(h codec.Header, f codec.Frame) error {
					v, err := c.Read(f.ID, f.Type, f.Payload)
					if err != nil {
						fmt.Fprintf(out, "%d\tseg=%d\ttype=%d\t<%v>\n", f.ID, h.Sequence, f.Type, err)
						return nil
					}
					fmt.Fprintf(out, "%d\tseg=%d\ttype=%d\t%s\n", f.ID, h.Sequence, f.Type, v)
					return nil
				})
				if err != nil {
					util.Warn("skipping %s: %v", name, err)
				}
			}
			return nil
		},
	}
}

func appendCmd() *cobra.Command {
	var (
		recordType uint8
		batch      bool
	)
	cmd := &cobra.Command{
		Use:   "append [values...]",
		Short: "Append values to the journal, one record each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := entryCodec(cfg)
			if err != nil {
				return err
			}
			ids, closeIDs, err := cfg.IDGenerator()
			if err != nil {
				return err
			}
			defer closeIDs()

			out := cmd.OutOrStdout()
			var listener journal.Listener[string] = journal.ListenerFuncs[string]{
				Commit: func(r types.Record[string]) {
					fmt.Fprintf(out, "committed %d in segment %d\n", r.ID, r.Segment)
				},
				BatchFailure: func(_ *journal.Batch[string], err error) {
					fmt.Fprintf(out, "batch rolled back: %v\n", err)
				},
			}
			if len(cfg.KafkaBrokers) > 0 {
				fwd := forward.NewKafkaForwarder(listener, forward.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), journal.EntryWriter[string](c))
				defer fwd.Close()
				listener = fwd
			}

			j, err := journal.Open(cfg.Name, journal.Options[string]{
				Dir:             cfg.Dir,
				SegmentSize:     cfg.SegmentSize,
				SyncWrites:      cfg.SyncWrites,
				Naming:          cfg.Naming(),
				IDs:             ids,
				Listener:        listener,
				ListenerWorkers: cfg.ListenerWorkers,
			}.WithCodec(c))
			if err != nil {
				return err
			}

			if batch {
				b := j.StartBatch()
				for _, v := range args {
					if err := b.Append(v, recordType); err != nil {
						_ = j.Close()
						return err
					}
				}
				err = b.Commit()
			} else {
				for _, v := range args {
					if err = j.AppendSync(v, recordType); err != nil {
						break
					}
				}
			}
			if cerr := j.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			if cfg.RetentionSegments > 0 {
				marked, err := disk.EnforceRetention(disk.OSFileSystem{}, cfg.Dir, cfg.Naming(), cfg.RetentionSegments)
				if err != nil {
					return err
				}
				util.Info("retention marked %d segments for deletion", len(marked))
			}
			return nil
		},
	}
	cmd.Flags().Uint8VarP(&recordType, "type", "t", 1, "Record type tag")
	cmd.Flags().BoolVarP(&batch, "batch", "b", false, "Commit all values atomically as one batch")
	return cmd
}

func benchCmd() *cobra.Command {
	var producers, records, payload, batchSize int
	var syncWrites bool
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure append throughput in the journal directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner := bench.NewBenchmarkRunner(filepath.Join(cfg.Dir, "bench"), producers, records, payload, batchSize, syncWrites)
			runner.SegmentSize = cfg.SegmentSize

			res, err := runner.Run()
			if err != nil {
				return err
			}
			res.Print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&producers, "producers", 4, "Concurrent appending goroutines")
	cmd.Flags().IntVar(&records, "records", 10000, "Records per producer")
	cmd.Flags().IntVar(&payload, "payload", 128, "Payload size in bytes")
	cmd.Flags().IntVar(&batchSize, "batch", 0, "Records per batch commit (0 appends one by one)")
	cmd.Flags().BoolVar(&syncWrites, "sync", false, "fsync every write")
	return cmd
}

func retainCmd() *cobra.Command {
	var keep int
	var purge bool
	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Mark old segments as deleted, keeping the newest ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if keep <= 0 {
				keep = cfg.RetentionSegments
			}
			fs := disk.OSFileSystem{}
			marked, err := disk.EnforceRetention(fs, cfg.Dir, cfg.Naming(), keep)
			if err != nil {
				return err
			}
			for _, p := range marked {
				fmt.Fprintf(cmd.OutOrStdout(), "marked %s\n", p)
			}
			if purge {
				n, err := disk.PurgeDeleted(fs, cfg.Dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d files\n", n)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&keep, "keep", "k", 0, "Segments to keep (defaults to retention_segments)")
	cmd.Flags().BoolVar(&purge, "purge", false, "Remove marked files afterwards")
	return cmd
}
