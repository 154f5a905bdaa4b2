package config

import (
	"encoding/json"
	"os"

	"github.com/fraudwatch/fraudwatch/internal/flagx"
	"github.com/fraudwatch/fraudwatch/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "15s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr              string         `json:"endpoint_addr"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	SessionValidityDuration   timex.Duration `json:"session_validity_duration"`
	ChallengeValidityDuration timex.Duration `json:"challenge_validity_duration"`
	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
	LedgerRPCEndpoint         string         `json:"ledger_rpc_endpoint"`
	LedgerContract            string         `json:"ledger_contract"`
	GovernanceAddresses       []string       `json:"governance_addresses"`
	PollInterval              timex.Duration `json:"poll_interval"`
	PollBackoffCap            timex.Duration `json:"poll_backoff_cap"`
	PendingTxTimeout          timex.Duration `json:"pending_tx_timeout"`
	VerifiedWeight            *int           `json:"verified_weight"`
	RejectedWeight            *int           `json:"rejected_weight"`
	TokenReward               *int           `json:"token_reward"`
}

// parseJson overlays values from the JSON config file named by -c/-config,
// if any, onto cfg. Missing file or fields leave cfg untouched.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return
	}

	if jc.EndpointAddr != "" {
		cfg.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SecretKey != "" {
		cfg.SecretKey = jc.SecretKey
	}
	if jc.SessionValidityDuration != 0 {
		cfg.SessionValidityDuration = jc.SessionValidityDuration.Std()
	}
	if jc.ChallengeValidityDuration != 0 {
		cfg.ChallengeValidityDuration = jc.ChallengeValidityDuration.Std()
	}
	if jc.S3RootUser != "" {
		cfg.S3RootUser = jc.S3RootUser
	}
	if jc.S3RootPassword != "" {
		cfg.S3RootPassword = jc.S3RootPassword
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.LedgerRPCEndpoint != "" {
		cfg.LedgerRPCEndpoint = jc.LedgerRPCEndpoint
	}
	if jc.LedgerContract != "" {
		cfg.LedgerContract = jc.LedgerContract
	}
	if len(jc.GovernanceAddresses) > 0 {
		cfg.GovernanceAddresses = jc.GovernanceAddresses
	}
	if jc.PollInterval != 0 {
		cfg.PollInterval = jc.PollInterval.Std()
	}
	if jc.PollBackoffCap != 0 {
		cfg.PollBackoffCap = jc.PollBackoffCap.Std()
	}
	if jc.PendingTxTimeout != 0 {
		cfg.PendingTxTimeout = jc.PendingTxTimeout.Std()
	}
	if jc.VerifiedWeight != nil {
		cfg.VerifiedWeight = *jc.VerifiedWeight
	}
	if jc.RejectedWeight != nil {
		cfg.RejectedWeight = *jc.RejectedWeight
	}
	if jc.TokenReward != nil {
		cfg.TokenReward = *jc.TokenReward
	}
}
