package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry explicit
	// SHOPMATE_ tags so the prefix stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHOPMATE_DB_DSN"
	EnvDBHost = "SHOPMATE_DB_HOST"
	EnvDBUser = "SHOPMATE_DB_USER"
	EnvDBName = "SHOPMATE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
