package config

import (
	"os"
	"strings"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/util"
)

func (cfg *Config) Normalize() {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "journal"
	}
	if strings.TrimSpace(cfg.NamingPrefix) == "" {
		cfg.NamingPrefix = cfg.Name
	}
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = 1 << 20 // 1MB
	} else if cfg.SegmentSize < codec.MinCapacity {
		util.Warn("segment_size %d is below the %d byte floor", cfg.SegmentSize, codec.MinCapacity)
	}
	if cfg.ListenerWorkers <= 0 {
		cfg.ListenerWorkers = 1
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
	if cfg.RetentionSegments < 0 {
		cfg.RetentionSegments = 0
	}

	cfg.Compression = strings.ToLower(strings.TrimSpace(cfg.Compression))
	if cfg.Compression == "" {
		cfg.Compression = util.CompressionNone
	}
	if !util.IsSupportedCompression(cfg.Compression) {
		util.Warn("Invalid compression '%s', defaulting to 'none'", cfg.Compression)
		cfg.Compression = util.CompressionNone
	}

	cfg.Codec = strings.ToLower(strings.TrimSpace(cfg.Codec))
	switch cfg.Codec {
	case CodecBytes, CodecString, CodecJSON, CodecMsgpack:
	default:
		util.Warn("Invalid codec '%s', defaulting to '%s'", cfg.Codec, CodecBytes)
		cfg.Codec = CodecBytes
	}

	cfg.IDStore = strings.ToLower(strings.TrimSpace(cfg.IDStore))
	switch cfg.IDStore {
	case IDStoreMemory, IDStorePebble:
	default:
		util.Warn("Invalid id_store '%s', defaulting to '%s'", cfg.IDStore, IDStoreMemory)
		cfg.IDStore = IDStoreMemory
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvUint64(target *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseUint64(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideEnvStringSlice(target *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.SplitList(v)
	}
}

func overrideEnvLogLevel(target *util.LogLevel, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseLogLevel(v)
	}
}
