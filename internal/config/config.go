package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "volley.cfg.json"

// SimConfig holds the per-world scalars of the arrow and minion systems.
type SimConfig struct {
	DT             float32
	Ticks          int
	MaxRangeSq     float32
	ProbeCap       int
	SmallBatchSize int
	BigBatchSize   int
	Workers        int
	CellSize       float32
	MinionSpeed    float32
	HalfExtent     float32
}

// ArcherConfig holds the ranged attack cycle and launch settings.
type ArcherConfig struct {
	AttackTime   float32
	HitTime      float32
	Speed        float32
	Pitch        float32
	Jitter       float32
	LaunchHeight float32
	Damage       float32
}

// ScenarioConfig describes the two armies seeded at startup.
type ScenarioConfig struct {
	Name           string
	Seed           uint64
	MinionsPerSide int
	RangedFraction float32
	Separation     float32
	Spread         float32
	Health         float32
	HitRadiusSq    float32
}

// FootprintConfig is one raised polygon of a footprint terrain.
type FootprintConfig struct {
	WKT       string  `json:"wkt" mapstructure:"wkt"`
	Elevation float32 `json:"elevation" mapstructure:"elevation"`
}

// HeightfieldConfig is a regular grid of height samples.
type HeightfieldConfig struct {
	OriginX float32   `json:"originX" mapstructure:"originX"`
	OriginZ float32   `json:"originZ" mapstructure:"originZ"`
	Spacing float32   `json:"spacing" mapstructure:"spacing"`
	Cols    int       `json:"cols" mapstructure:"cols"`
	Rows    int       `json:"rows" mapstructure:"rows"`
	Heights []float32 `json:"heights" mapstructure:"heights"`
}

// TerrainConfig selects and parameterizes the ground surface.
type TerrainConfig struct {
	Type        string // flat, heightfield or footprints
	BaseHeight  float32
	Footprints  []FootprintConfig
	Heightfield HeightfieldConfig
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps
// the database in memory and dumps it to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string
	DumpPath     string
	DumpInterval time.Duration
}

// PostgresConfig holds the connection settings of the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// WebSocketConfig holds the streaming backend settings.
type WebSocketConfig struct {
	URL      string
	Secret   string
	Encoding string
	Auth     string
}

// StorageConfig selects the recording backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	Postgres  PostgresConfig
	WebSocket WebSocketConfig
}

// InfluxConfig holds the tick metrics sink settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// UploadConfig holds the replay server a finished recording is sent to.
type UploadConfig struct {
	Enabled   bool
	ServerURL string
	APIKey    string
	Tag       string
}

// MonitorConfig controls the runtime status monitor.
type MonitorConfig struct {
	Interval time.Duration
	Addr     string // HTTP status endpoint; empty disables it
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./volleylogs")
	viper.SetDefault("configDir", ".")

	viper.SetDefault("sim.dt", 1.0/60.0)
	viper.SetDefault("sim.ticks", 600)
	viper.SetDefault("sim.maxRangeSq", 10000)
	viper.SetDefault("sim.probeCap", 4)
	viper.SetDefault("sim.smallBatchSize", 64)
	viper.SetDefault("sim.bigBatchSize", 1024)
	viper.SetDefault("sim.workers", 0)
	viper.SetDefault("sim.cellSize", 2)
	viper.SetDefault("sim.minionSpeed", 1.5)
	viper.SetDefault("sim.halfExtent", 120)

	viper.SetDefault("archer.attackTime", 2)
	viper.SetDefault("archer.hitTime", 1)
	viper.SetDefault("archer.speed", 30)
	viper.SetDefault("archer.pitch", 0.6)
	viper.SetDefault("archer.jitter", 1.5)
	viper.SetDefault("archer.launchHeight", 1.5)
	viper.SetDefault("archer.damage", 20)

	viper.SetDefault("scenario.name", "skirmish")
	viper.SetDefault("scenario.seed", 1)
	viper.SetDefault("scenario.minionsPerSide", 500)
	viper.SetDefault("scenario.rangedFraction", 0.5)
	viper.SetDefault("scenario.separation", 60)
	viper.SetDefault("scenario.spread", 40)
	viper.SetDefault("scenario.health", 100)
	viper.SetDefault("scenario.hitRadiusSq", 1)

	viper.SetDefault("terrain.type", "flat")
	viper.SetDefault("terrain.baseHeight", 0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ingest")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.encoding", "json")
	viper.SetDefault("storage.websocket.auth", "query")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "volley")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "volley-metrics")
	viper.SetDefault("influx.bucket", "volley")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.serverUrl", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")
	viper.SetDefault("upload.tag", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "volley")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.addr", "")
}

// BindFlags registers the command line overrides on fs and binds them to
// their config keys. Flags win over the config file.
func BindFlags(fs *pflag.FlagSet) error {
	fs.String("config-dir", ".", "directory containing "+FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Int("ticks", 600, "number of ticks to simulate")
	fs.Int("workers", 0, "worker pool size (0 = GOMAXPROCS)")
	fs.Int("minions", 500, "minions per side")
	fs.Uint64("seed", 1, "scenario seed")
	fs.String("storage", "memory", "recording backend (memory, sqlite, postgres, websocket)")
	fs.String("monitor-addr", "", "serve /status and /healthz on this address")

	bindings := map[string]string{
		"config-dir":   "configDir",
		"log-level":    "logLevel",
		"ticks":        "sim.ticks",
		"workers":      "sim.workers",
		"minions":      "scenario.minionsPerSide",
		"seed":         "scenario.seed",
		"storage":      "storage.type",
		"monitor-addr": "monitor.addr",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func getFloat32(key string) float32 {
	return float32(viper.GetFloat64(key))
}

// Sim returns the simulation settings.
func Sim() SimConfig {
	return SimConfig{
		DT:             getFloat32("sim.dt"),
		Ticks:          viper.GetInt("sim.ticks"),
		MaxRangeSq:     getFloat32("sim.maxRangeSq"),
		ProbeCap:       viper.GetInt("sim.probeCap"),
		SmallBatchSize: viper.GetInt("sim.smallBatchSize"),
		BigBatchSize:   viper.GetInt("sim.bigBatchSize"),
		Workers:        viper.GetInt("sim.workers"),
		CellSize:       getFloat32("sim.cellSize"),
		MinionSpeed:    getFloat32("sim.minionSpeed"),
		HalfExtent:     getFloat32("sim.halfExtent"),
	}
}

// Archer returns the archer settings.
func Archer() ArcherConfig {
	return ArcherConfig{
		AttackTime:   getFloat32("archer.attackTime"),
		HitTime:      getFloat32("archer.hitTime"),
		Speed:        getFloat32("archer.speed"),
		Pitch:        getFloat32("archer.pitch"),
		Jitter:       getFloat32("archer.jitter"),
		LaunchHeight: getFloat32("archer.launchHeight"),
		Damage:       getFloat32("archer.damage"),
	}
}

// Scenario returns the startup scenario.
func Scenario() ScenarioConfig {
	return ScenarioConfig{
		Name:           viper.GetString("scenario.name"),
		Seed:           viper.GetUint64("scenario.seed"),
		MinionsPerSide: viper.GetInt("scenario.minionsPerSide"),
		RangedFraction: getFloat32("scenario.rangedFraction"),
		Separation:     getFloat32("scenario.separation"),
		Spread:         getFloat32("scenario.spread"),
		Health:         getFloat32("scenario.health"),
		HitRadiusSq:    getFloat32("scenario.hitRadiusSq"),
	}
}

// Terrain returns the terrain settings.
func Terrain() (TerrainConfig, error) {
	cfg := TerrainConfig{
		Type:       viper.GetString("terrain.type"),
		BaseHeight: getFloat32("terrain.baseHeight"),
	}
	if err := viper.UnmarshalKey("terrain.footprints", &cfg.Footprints); err != nil {
		return cfg, fmt.Errorf("decoding terrain.footprints: %w", err)
	}
	if err := viper.UnmarshalKey("terrain.heightfield", &cfg.Heightfield); err != nil {
		return cfg, fmt.Errorf("decoding terrain.heightfield: %w", err)
	}
	return cfg, nil
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		WebSocket: WebSocketConfig{
			URL:      viper.GetString("storage.websocket.url"),
			Secret:   viper.GetString("storage.websocket.secret"),
			Encoding: viper.GetString("storage.websocket.encoding"),
			Auth:     viper.GetString("storage.websocket.auth"),
		},
	}
}

// GetInfluxConfig returns the tick metrics sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetUploadConfig returns the recording upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled:   viper.GetBool("upload.enabled"),
		ServerURL: viper.GetString("upload.serverUrl"),
		APIKey:    viper.GetString("upload.apiKey"),
		Tag:       viper.GetString("upload.tag"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: viper.GetDuration("monitor.interval"),
		Addr:     viper.GetString("monitor.addr"),
	}
}
