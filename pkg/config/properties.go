package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/downfa11-org/go-journal/pkg/codec"
	"github.com/downfa11-org/go-journal/pkg/idgen"
	"github.com/downfa11-org/go-journal/pkg/journal"
	"github.com/downfa11-org/go-journal/pkg/naming"
	"github.com/downfa11-org/go-journal/util"
	"gopkg.in/yaml.v3"
)

const (
	IDStoreMemory = "memory"
	IDStorePebble = "pebble"

	CodecBytes   = "bytes"
	CodecString  = "string"
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Config represents the journal configuration shared by the CLI and embedding programs.
type Config struct {
	// Journal
	Dir             string `yaml:"dir" json:"dir"`
	Name            string `yaml:"name" json:"name"`
	SegmentSize     int    `yaml:"segment_size" json:"segment_size"`
	SyncWrites      bool   `yaml:"sync_writes" json:"sync_writes"`
	ListenerWorkers int    `yaml:"listener_workers" json:"listener_workers"`
	NamingPrefix    string `yaml:"naming_prefix" json:"naming_prefix"`

	// Payloads
	Codec       string `yaml:"codec" json:"codec"`
	Compression string `yaml:"compression" json:"compression"`

	// Record ids
	IDStore        string `yaml:"id_store" json:"id_store"`
	IDStorePath    string `yaml:"id_store_path" json:"id_store_path"`
	IDReserveBlock uint64 `yaml:"id_reserve_block" json:"id_reserve_block"`

	// Maintenance
	RetentionSegments int `yaml:"retention_segments" json:"retention_segments"`

	// Observability
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable_exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter_port"`

	// Forwarding
	KafkaBrokers []string `yaml:"kafka_brokers" json:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" json:"kafka_topic"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Dir:             "journal-data",
		Name:            "journal",
		SegmentSize:     journal.DefaultSegmentSize,
		ListenerWorkers: journal.DefaultListenerWorkers,
		Codec:           CodecBytes,
		Compression:     util.CompressionNone,
		IDStore:         IDStoreMemory,
		IDReserveBlock:  idgen.DefaultReserveBlock,
		LogLevel:        util.LogLevelInfo,
		ExporterPort:    9100,
	}
}

// Load builds a configuration from defaults, the optional YAML or JSON file at path and
// JOURNAL_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &journal.ConfigError{Field: "config", Reason: "cannot read " + path, Err: err}
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, &journal.ConfigError{Field: "config", Reason: "cannot parse " + path, Err: err}
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	overrideEnvString(&cfg.Dir, "JOURNAL_DIR")
	overrideEnvString(&cfg.Name, "JOURNAL_NAME")
	overrideEnvInt(&cfg.SegmentSize, "JOURNAL_SEGMENT_SIZE")
	overrideEnvBool(&cfg.SyncWrites, "JOURNAL_SYNC_WRITES")
	overrideEnvInt(&cfg.ListenerWorkers, "JOURNAL_LISTENER_WORKERS")
	overrideEnvString(&cfg.NamingPrefix, "JOURNAL_NAMING_PREFIX")
	overrideEnvString(&cfg.Codec, "JOURNAL_CODEC")
	overrideEnvString(&cfg.Compression, "JOURNAL_COMPRESSION")
	overrideEnvString(&cfg.IDStore, "JOURNAL_ID_STORE")
	overrideEnvString(&cfg.IDStorePath, "JOURNAL_ID_STORE_PATH")
	overrideEnvUint64(&cfg.IDReserveBlock, "JOURNAL_ID_RESERVE_BLOCK")
	overrideEnvInt(&cfg.RetentionSegments, "JOURNAL_RETENTION_SEGMENTS")
	overrideEnvLogLevel(&cfg.LogLevel, "JOURNAL_LOG_LEVEL")
	overrideEnvBool(&cfg.EnableExporter, "JOURNAL_ENABLE_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "JOURNAL_EXPORTER_PORT")
	overrideEnvStringSlice(&cfg.KafkaBrokers, "JOURNAL_KAFKA_BROKERS")
	overrideEnvString(&cfg.KafkaTopic, "JOURNAL_KAFKA_TOPIC")
}

// Validate reports the first setting a journal cannot be opened with.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Dir) == "" {
		return &journal.ConfigError{Field: "dir", Reason: "must not be empty"}
	}
	if cfg.SegmentSize < codec.MinCapacity {
		return &journal.ConfigError{Field: "segment_size", Reason: fmt.Sprintf("%d is below minimum of %d bytes", cfg.SegmentSize, codec.MinCapacity)}
	}
	if cfg.IDStore == IDStorePebble && strings.TrimSpace(cfg.IDStorePath) == "" {
		return &journal.ConfigError{Field: "id_store_path", Reason: "required for the pebble id store"}
	}
	if len(cfg.KafkaBrokers) > 0 && strings.TrimSpace(cfg.KafkaTopic) == "" {
		return &journal.ConfigError{Field: "kafka_topic", Reason: "required when kafka_brokers is set"}
	}
	return nil
}

// Naming returns the segment naming strategy for this configuration.
func (cfg *Config) Naming() naming.Prefix {
	return naming.NewPrefix(cfg.NamingPrefix)
}

// IDGenerator opens the configured record id generator. The returned close function
// must be called once the journal using it has closed.
func (cfg *Config) IDGenerator() (journal.RecordIDGenerator, func() error, error) {
	switch cfg.IDStore {
	case IDStorePebble:
		d, err := idgen.OpenDurable(cfg.IDStorePath, cfg.IDReserveBlock)
		if err != nil {
			return nil, nil, &journal.ConfigError{Field: "id_store_path", Reason: "cannot open id store", Err: err}
		}
		return d, d.Close, nil
	default:
		return idgen.NewSequencer(0), func() error { return nil }, nil
	}
}
