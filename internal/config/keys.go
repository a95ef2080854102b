package config

// Recognized property keys.
const (
	KeyScenarioPath        = "scenario.path"
	KeyScenarioInclude     = "scenario.include"
	KeyScenarioExclude     = "scenario.exclude"
	KeyArtifactsDir        = "artifacts.dir"
	KeyQuerySetDir         = "queryset.dir"
	KeyTestQueriesDir      = "test.queries.dir"
	KeyExpectedResultsDirs = "expected.results.dirs"
	KeyOutputDir           = "output.dir"
	KeyResultMode          = "result.mode"
	KeyResultWriters       = "result.writers"
	KeyAllowedDivergence   = "allowed.divergence"
	KeyConnectionStrategy  = "connection.strategy"
	KeyConnectionURL       = "connection.url"
	KeyPingQuery           = "scenario.ping.query"
	KeyAfterQuery          = "scenario.after.query"
	KeyFailFast            = "scenario.fail.fast"
	KeyWorkers             = "runner.workers"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"

	KeySQLitePath      = "writer.sqlite.path"
	KeyElasticAddrs    = "writer.elasticsearch.addresses"
	KeyElasticIndex    = "writer.elasticsearch.index"
	KeyElasticUsername = "writer.elasticsearch.username"
	KeyElasticPassword = "writer.elasticsearch.password"
)

// Defaults for keys that have one.
const (
	DefaultWriters       = "summary,console"
	DefaultFailFast      = FailFastOff
	DefaultWorkers       = 1
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultElasticIndex  = "whipper-results"
	DefaultQueriesSubdir = "queries"
)

// Fail-fast policies.
const (
	FailFastOff      = "off"
	FailFastQuerySet = "queryset"
	FailFastScenario = "scenario"
)
