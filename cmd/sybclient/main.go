// Command sybclient is a small interactive driver for the sybtds
// connection core: it resolves connection settings from a JSON config
// file, environment variables, and flags (increasing precedence), logs
// in, runs one query, and prints the results.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ha1tch/sybtds"
	sybtdslog "github.com/ha1tch/sybtds/log"
)

type fileConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	AppName  string `json:"app_name"`

	ConnectionTimeoutS int `json:"connection_timeout_s"`
}

// Environment variable names, kept SYBTDS_-prefixed rather than the
// MSSQL_ convention since this client speaks TDS 5.0, not TDS 7.x.
const (
	envHost         = "SYBTDS_HOST"
	envPort         = "SYBTDS_PORT"
	envUser         = "SYBTDS_USER"
	envPassword     = "SYBTDS_PASSWORD"
	envDatabase     = "SYBTDS_DATABASE"
	envAppName      = "SYBTDS_APP_NAME"
	envConnTimeoutS = "SYBTDS_CONNECTION_TIMEOUT_S"

	defaultPort     = 5000
	defaultTimeoutS = 10
)

func main() {
	var (
		cfgPath = flag.String("config", "config.json", "Path to JSON config file")

		host     = flag.String("host", "", "server host")
		port     = flag.Int("port", 0, "server port")
		user     = flag.String("user", "", "login user")
		password = flag.String("password", "", "login password")
		database = flag.String("database", "", "database name")
		appName  = flag.String("app-name", "", "application name")
		timeoutS = flag.Int("timeout", 0, "connection timeout in seconds")
		query    = flag.String("query", "select 1", "query to run after connecting")

		verbose = flag.Bool("v", false, "verbose output (log protocol events)")
	)
	flag.Parse()

	cfg := loadConfig(*cfgPath)
	applyEnv(&cfg)
	applyCLI(&cfg, *host, *port, *user, *password, *database, *appName, *timeoutS)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	opts := sybtds.Options{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		AppName:  cfg.AppName,
	}
	var extra []sybtds.Option
	if *verbose {
		verboseCfg := sybtdslog.DefaultConfig()
		verboseCfg.DefaultLevel = sybtdslog.LevelDebug
		extra = append(extra, sybtds.WithLogger(sybtdslog.New(verboseCfg)))
	}

	timeout := time.Duration(cfg.ConnectionTimeoutS) * time.Second
	conn, err := sybtds.Connect(opts, timeout, extra...)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer conn.Disconnect(timeout)

	fmt.Printf("Connected to %s:%d (tds %d)\n", cfg.Host, cfg.Port, conn.TDSVersion())

	results, err := conn.SQLQuery(*query, timeout)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	printResults(results)
}

func loadConfig(path string) fileConfig {
	var cfg fileConfig

	p := path
	if !filepath.IsAbs(p) {
		if wd, err := os.Getwd(); err == nil {
			p = filepath.Join(wd, p)
		}
	}

	b, err := os.ReadFile(p)
	if err != nil {
		return cfg // config file is optional
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		log.Printf("warning: invalid config file %s: %v", path, err)
	}
	return cfg
}

func applyEnv(cfg *fileConfig) {
	if v := os.Getenv(envHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(envPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv(envUser); v != "" {
		cfg.User = v
	}
	if v := os.Getenv(envPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(envDatabase); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv(envAppName); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv(envConnTimeoutS); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConnectionTimeoutS = n
		}
	}
}

func applyCLI(cfg *fileConfig, host string, port int, user, password, database, appName string, timeoutS int) {
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if user != "" {
		cfg.User = user
	}
	if password != "" {
		cfg.Password = password
	}
	if database != "" {
		cfg.Database = database
	}
	if appName != "" {
		cfg.AppName = appName
	}
	if timeoutS != 0 {
		cfg.ConnectionTimeoutS = timeoutS
	}
}

func applyDefaults(cfg *fileConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ConnectionTimeoutS <= 0 {
		cfg.ConnectionTimeoutS = defaultTimeoutS
	}
}

func validate(cfg *fileConfig) error {
	var missing []string
	if strings.TrimSpace(cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(cfg.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func printResults(results []sybtds.Result) {
	for i, r := range results {
		switch v := r.(type) {
		case sybtds.AffectedRows:
			fmt.Printf("[%d] %d row(s) affected\n", i, v.N)
		case sybtds.ResultSet:
			fmt.Printf("[%d] %s\n", i, strings.Join(v.Columns, "\t"))
			for _, row := range v.Rows {
				cells := make([]string, len(row))
				for j, val := range row {
					cells[j] = fmt.Sprintf("%v", val)
				}
				fmt.Println("    " + strings.Join(cells, "\t"))
			}
		case sybtds.ProcedureResult:
			fmt.Printf("[%d] return status %d, %d out param(s)\n", i, v.ReturnStatus, len(v.OutParams))
		}
	}
}
