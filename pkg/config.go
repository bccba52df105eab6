package evb

import (
	"encoding/json"
	"fmt"
	"os"
)

type Configuration struct {
	InputDir          string  `json:"input_dir"`
	OutputDir         string  `json:"output_dir"`
	RunMin            int     `json:"run_min"`
	RunMax            int     `json:"run_max"`
	CoincidenceWindow int64   `json:"coincidence_window_ps"`
	MemoryCeiling     int64   `json:"memory_ceiling_bytes"`
	OutputFormat      string  `json:"output_format"`
	CompressionLevel  int     `json:"compression_level"`
	MissingValue      float64 `json:"missing_value"`
	Dither            bool    `json:"dither"`
	DitherSeed        uint64  `json:"dither_seed"`
	NumWorkers        int     `json:"num_workers"`
	Verbosity         int     `json:"verbosity"`
	NoDB              bool    `json:"no_db"`
	ChannelMapFile    string  `json:"channel_map_file"`
	Host              string  `json:"host"`
	User              string  `json:"user"`
	Passwd            string  `json:"pass"`
	DBName            string  `json:"dbname"`
	MetricsAddr       string  `json:"metrics_addr"`
}

const (
	// Maximum size of the in-memory event table of a run: 8GB
	DefaultMemoryCeiling = 8_000_000_000
	// Value written for fields an event did not produce
	DefaultMissingValue = -1.0e6
	// 3 us
	DefaultCoincidenceWindow = 3_000_000
)

var configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func DefaultConfiguration() Configuration {
	return Configuration{
		RunMin:            0,
		RunMax:            1,
		CoincidenceWindow: DefaultCoincidenceWindow,
		MemoryCeiling:     DefaultMemoryCeiling,
		OutputFormat:      "hdf5",
		CompressionLevel:  4,
		MissingValue:      DefaultMissingValue,
		NumWorkers:        4,
		Verbosity:         0,
		NoDB:              true,
		Host:              "localhost",
		User:              "evbreader",
		Passwd:            "readonly",
		DBName:            "EVB",
	}
}

// LoadConfiguration reads a JSON configuration file over the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, config.Validate()
}

func (c Configuration) Validate() error {
	if c.CoincidenceWindow <= 0 {
		return fmt.Errorf("coincidence_window_ps must be positive, got %d", c.CoincidenceWindow)
	}
	if c.MemoryCeiling <= 0 {
		return fmt.Errorf("memory_ceiling_bytes must be positive, got %d", c.MemoryCeiling)
	}
	if c.RunMax <= c.RunMin {
		return fmt.Errorf("run_max (%d) must be greater than run_min (%d)", c.RunMax, c.RunMin)
	}
	if _, err := NewTableWriter(c); err != nil {
		return err
	}
	if c.NoDB && c.ChannelMapFile == "" {
		return fmt.Errorf("channel_map_file is required when no_db is set")
	}
	return nil
}

// NewTableWriter returns the writer for the configured output format.
func NewTableWriter(c Configuration) (TableWriter, error) {
	switch c.OutputFormat {
	case "hdf5", "h5", "":
		return &HDF5Writer{CompressionLevel: c.CompressionLevel}, nil
	case "csv":
		return CSVWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
}

func PrintConfiguration(config Configuration) {
	logger.Info(fmt.Sprintf("Input dir: %s", config.InputDir), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutputDir), "config")
	logger.Info(fmt.Sprintf("Runs: [%d, %d)", config.RunMin, config.RunMax), "config")
	logger.Info(fmt.Sprintf("Coincidence window: %d ps", config.CoincidenceWindow), "config")
	logger.Info(fmt.Sprintf("Memory ceiling: %d bytes", config.MemoryCeiling), "config")
	logger.Info(fmt.Sprintf("Output format: %s", config.OutputFormat), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Missing value: %g", config.MissingValue), "config")
	logger.Info(fmt.Sprintf("Dither: %t (seed %d)", config.Dither, config.DitherSeed), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Channel map file: %s", config.ChannelMapFile), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
}
