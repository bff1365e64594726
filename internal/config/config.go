package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cityofzion/faucetd/internal/core/application"
	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
	"github.com/cityofzion/faucetd/internal/infrastructure/db"
	nodeclient "github.com/cityofzion/faucetd/internal/infrastructure/relayer/node"
	timescheduler "github.com/cityofzion/faucetd/internal/infrastructure/scheduler/gocron"
	inmemorysession "github.com/cityofzion/faucetd/internal/infrastructure/session/inmemory"
	redissession "github.com/cityofzion/faucetd/internal/infrastructure/session/redis"
	txbuilder "github.com/cityofzion/faucetd/internal/infrastructure/tx-builder/contract"
	walletclient "github.com/cityofzion/faucetd/internal/infrastructure/wallet"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
	}
	supportedSessionStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
)

type Config struct {
	Datadir    string
	ListenHost string
	ListenPort uint32
	LogLevel   int

	WalletPath     string
	WalletPassword string
	WalletAddr     string
	NodeAddr       string

	DbType           string
	DbDir            string
	DbUrl            string
	SessionStoreType string
	RedisUrl         string

	DripPrimaryAmount   int64
	DripSecondaryAmount int64
	MaxClientAttempts   int64
	WalletSyncInterval  time.Duration
	PersistInterval     time.Duration
	AskRate             float64
	AskBurst            int

	repo      ports.RepoManager
	svc       application.Service
	wallet    ports.WalletService
	relayer   ports.Relayer
	txBuilder ports.TxBuilder
	session   ports.SessionStore
	scheduler ports.SchedulerService
}

func (c *Config) String() string {
	clone := *c
	if clone.WalletPassword != "" {
		clone.WalletPassword = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = defaultAppDatadir()
	DefaultPort                = 8080
	defaultListenHost          = "localhost"
	defaultWalletAddr          = "localhost:20332"
	defaultNodeAddr            = "localhost:20331"
	defaultDbType              = "sqlite"
	defaultSessionStoreType    = "inmemory"
	defaultLogLevel            = 4
	defaultDripPrimaryAmount   = 100
	defaultDripSecondaryAmount = 2000
	defaultMaxClientAttempts   = 3
	defaultWalletSyncInterval  = 100 * time.Millisecond
	defaultPersistInterval     = 100 * time.Millisecond
	defaultAskRate             = 1.0
	defaultAskBurst            = 5
)

// env returns a list of strings prefixed with `FAUCET_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("FAUCET_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	ListenHost = &cli.StringFlag{
		Usage: "Host the web interface binds to",
		Name:  "host", EnvVars: env("HOST"),
		Value: defaultListenHost,
	}

	ListenPort = &cli.UintFlag{
		Usage: "Port the web interface listens on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	WalletPath = &cli.StringFlag{
		Usage: "Path to the wallet file, opened by the wallet daemon at startup",
		Name:  "wallet-path", EnvVars: env("WALLET_PATH"),
	}

	WalletPassword = &cli.StringFlag{
		Usage: "Password of the wallet file",
		Name:  "wallet-password", EnvVars: env("WALLET_PASSWORD"),
	}

	WalletAddr = &cli.StringFlag{
		Usage: "The wallet daemon address to connect to in the form host:port",
		Name:  "wallet-addr", EnvVars: env("WALLET_ADDR"),
		Value: defaultWalletAddr,
	}

	NodeAddr = &cli.StringFlag{
		Usage: "The ledger node address to connect to in the form host:port",
		Name:  "node-addr", EnvVars: env("NODE_ADDR"),
		Value: defaultNodeAddr,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (sqlite, postgres, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if FAUCET_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	SessionStoreType = &cli.StringFlag{
		Usage: "Session store type (inmemory, redis)",
		Name:  "session-store-type", EnvVars: env("SESSION_STORE_TYPE"),
		Value: defaultSessionStoreType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if FAUCET_SESSION_STORE_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	DripPrimaryAmount = &cli.Int64Flag{
		Usage: "Whole units of the primary asset sent per disbursement",
		Name:  "drip-primary-amount", EnvVars: env("DRIP_PRIMARY_AMOUNT"),
		Value: int64(defaultDripPrimaryAmount),
	}

	DripSecondaryAmount = &cli.Int64Flag{
		Usage: "Whole units of the secondary asset sent per disbursement",
		Name:  "drip-secondary-amount", EnvVars: env("DRIP_SECONDARY_AMOUNT"),
		Value: int64(defaultDripSecondaryAmount),
	}

	MaxClientAttempts = &cli.Int64Flag{
		Usage: "Number of prior attempts per client per day before requests are refused",
		Name:  "max-client-attempts", EnvVars: env("MAX_CLIENT_ATTEMPTS"),
		Value: int64(defaultMaxClientAttempts),
	}

	WalletSyncInterval = &cli.DurationFlag{
		Usage: "Interval between wallet block ingestion ticks",
		Name:  "wallet-sync-interval", EnvVars: env("WALLET_SYNC_INTERVAL"),
		Value: defaultWalletSyncInterval,
	}

	PersistInterval = &cli.DurationFlag{
		Usage: "Interval between ledger persistence ticks",
		Name:  "persist-interval", EnvVars: env("PERSIST_INTERVAL"),
		Value: defaultPersistInterval,
	}

	AskRate = &cli.Float64Flag{
		Usage: "Sustained requests per second allowed per client on the ask endpoint",
		Name:  "ask-rate", EnvVars: env("ASK_RATE"),
		Value: defaultAskRate,
	}

	AskBurst = &cli.IntFlag{
		Usage: "Burst of requests allowed per client on the ask endpoint",
		Name:  "ask-burst", EnvVars: env("ASK_BURST"),
		Value: defaultAskBurst,
	}
)

var Flags = []cli.Flag{
	Datadir,
	ListenHost,
	ListenPort,
	LogLevel,
	WalletPath,
	WalletPassword,
	WalletAddr,
	NodeAddr,
	DbType,
	DbUrl,
	SessionStoreType,
	RedisUrl,
	DripPrimaryAmount,
	DripSecondaryAmount,
	MaxClientAttempts,
	WalletSyncInterval,
	PersistInterval,
	AskRate,
	AskBurst,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	var dbUrl string
	if c.String(DbType.Name) == "postgres" {
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fmt.Errorf("db type set to 'postgres' but db url is missing")
		}
	}

	var redisUrl string
	if c.String(SessionStoreType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fmt.Errorf("session store type set to 'redis' but redis url is missing")
		}
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		ListenHost:          c.String(ListenHost.Name),
		ListenPort:          uint32(c.Uint(ListenPort.Name)),
		LogLevel:            c.Int(LogLevel.Name),
		WalletPath:          c.String(WalletPath.Name),
		WalletPassword:      c.String(WalletPassword.Name),
		WalletAddr:          c.String(WalletAddr.Name),
		NodeAddr:            c.String(NodeAddr.Name),
		DbType:              c.String(DbType.Name),
		DbDir:               dbPath,
		DbUrl:               dbUrl,
		SessionStoreType:    c.String(SessionStoreType.Name),
		RedisUrl:            redisUrl,
		DripPrimaryAmount:   c.Int64(DripPrimaryAmount.Name),
		DripSecondaryAmount: c.Int64(DripSecondaryAmount.Name),
		MaxClientAttempts:   c.Int64(MaxClientAttempts.Name),
		WalletSyncInterval:  c.Duration(WalletSyncInterval.Name),
		PersistInterval:     c.Duration(PersistInterval.Name),
		AskRate:             c.Float64(AskRate.Name),
		AskBurst:            c.Int(AskBurst.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

func defaultAppDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".faucetd"
	}
	return filepath.Join(home, ".faucetd")
}

func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSessionStores.supports(c.SessionStoreType) {
		return fmt.Errorf(
			"session store type not supported, please select one of: %s",
			supportedSessionStores,
		)
	}
	if len(c.WalletPath) <= 0 {
		return fmt.Errorf("missing wallet path")
	}
	if len(c.WalletPassword) <= 0 {
		return fmt.Errorf("missing wallet password")
	}
	if c.DripPrimaryAmount <= 0 || c.DripSecondaryAmount <= 0 {
		return fmt.Errorf("drip amounts must be greater than 0")
	}
	if c.MaxClientAttempts < 0 {
		return fmt.Errorf("max client attempts must not be negative")
	}
	if c.WalletSyncInterval <= 0 || c.PersistInterval <= 0 {
		return fmt.Errorf("sync intervals must be greater than 0")
	}
	if c.AskRate <= 0 || c.AskBurst < 1 {
		return fmt.Errorf("invalid ask rate limit settings")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.walletService(); err != nil {
		return err
	}
	if err := c.relayerService(); err != nil {
		return err
	}
	if err := c.txBuilderService(); err != nil {
		return err
	}
	if err := c.sessionStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) WalletService() ports.WalletService {
	return c.wallet
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl, true}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) walletService() error {
	walletSvc, err := walletclient.New(c.WalletAddr)
	if err != nil {
		return err
	}

	c.wallet = walletSvc
	return nil
}

func (c *Config) relayerService() error {
	relayerSvc, err := nodeclient.New(c.NodeAddr)
	if err != nil {
		return err
	}

	c.relayer = relayerSvc
	return nil
}

func (c *Config) txBuilderService() error {
	if c.wallet == nil {
		return fmt.Errorf("wallet service not set")
	}

	c.txBuilder = txbuilder.NewTxBuilder(
		c.wallet,
		domain.Fixed8FromInt(c.DripPrimaryAmount),
		domain.Fixed8FromInt(c.DripSecondaryAmount),
	)
	return nil
}

func (c *Config) sessionStoreService() error {
	var sessionSvc ports.SessionStore
	switch c.SessionStoreType {
	case "inmemory":
		sessionSvc = inmemorysession.NewSessionStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		sessionSvc = redissession.NewSessionStore(rdb)
	default:
		return fmt.Errorf("unknown session store type")
	}

	c.session = sessionSvc
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) appService() error {
	svc := application.NewService(
		c.wallet, c.txBuilder, c.relayer, c.repo, c.session, c.scheduler,
		domain.Fixed8FromInt(c.DripPrimaryAmount),
		domain.Fixed8FromInt(c.DripSecondaryAmount),
		c.MaxClientAttempts,
		c.WalletSyncInterval, c.PersistInterval,
	)

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
